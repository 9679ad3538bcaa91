package enrichmentschema

import (
	"encoding/json"
	"testing"
)

func validPayload() map[string]any {
	return map[string]any{
		"title_ko":     "러스트로 작성한 새 데이터베이스 엔진",
		"summary_keys": []string{"핵심 하나", "핵심 둘"},
		"summary_detail": map[string]string{
			"introduction": "도입부 문단.",
			"body":         "본문 문단.",
			"conclusion":   "결론 문단.",
		},
		"tags":       []string{"rust", "databases"},
		"is_related": true,
	}
}

func marshalPayload(t *testing.T, payload map[string]any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

func TestValidateEnrichmentPayloadAcceptsValid(t *testing.T) {
	t.Parallel()

	result, err := ValidateEnrichmentPayload(marshalPayload(t, validPayload()))
	if err != nil {
		t.Fatalf("expected valid payload to pass, got %v", err)
	}
	if result.TitleKo != "러스트로 작성한 새 데이터베이스 엔진" {
		t.Fatalf("unexpected title: %q", result.TitleKo)
	}
	if len(result.SummaryKeys) != 2 {
		t.Fatalf("expected 2 summary keys, got %d", len(result.SummaryKeys))
	}
	if result.SummaryDetail.Conclusion != "결론 문단." {
		t.Fatalf("unexpected conclusion: %q", result.SummaryDetail.Conclusion)
	}
	if !result.IsRelated {
		t.Fatalf("expected is_related true")
	}
}

func TestValidateEnrichmentPayloadRejectsMissingField(t *testing.T) {
	t.Parallel()

	payload := validPayload()
	delete(payload, "is_related")
	if _, err := ValidateEnrichmentPayload(marshalPayload(t, payload)); err == nil {
		t.Fatalf("expected missing is_related to fail")
	}
}

func TestValidateEnrichmentPayloadRejectsTooManySummaryKeys(t *testing.T) {
	t.Parallel()

	payload := validPayload()
	payload["summary_keys"] = []string{"하나", "둘", "셋", "넷"}
	if _, err := ValidateEnrichmentPayload(marshalPayload(t, payload)); err == nil {
		t.Fatalf("expected four summary keys to fail")
	}
}

func TestValidateEnrichmentPayloadRejectsUnknownField(t *testing.T) {
	t.Parallel()

	payload := validPayload()
	payload["confidence"] = 0.9
	if _, err := ValidateEnrichmentPayload(marshalPayload(t, payload)); err == nil {
		t.Fatalf("expected unknown field to fail")
	}
}

func TestValidateEnrichmentPayloadRejectsTrailingContent(t *testing.T) {
	t.Parallel()

	raw := append(marshalPayload(t, validPayload()), []byte(` {"second":true}`)...)
	if _, err := ValidateEnrichmentPayload(raw); err == nil {
		t.Fatalf("expected trailing content to fail")
	}
}

func TestValidateEnrichmentPayloadRejectsBlankTitle(t *testing.T) {
	t.Parallel()

	payload := validPayload()
	payload["title_ko"] = "   "
	if _, err := ValidateEnrichmentPayload(marshalPayload(t, payload)); err == nil {
		t.Fatalf("expected blank title to fail")
	}
}

func TestValidateEnrichmentPayloadRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	if _, err := ValidateEnrichmentPayload(json.RawMessage(`{"title_ko":`)); err == nil {
		t.Fatalf("expected malformed JSON to fail")
	}
	if _, err := ValidateEnrichmentPayload(nil); err == nil {
		t.Fatalf("expected empty payload to fail")
	}
}
