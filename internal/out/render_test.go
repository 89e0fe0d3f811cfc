package out

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ggonzalez94/defi-intents/internal/config"
	"github.com/ggonzalez94/defi-intents/internal/model"
)

func TestRenderJSONSelectResultsOnly(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: true,
		Data:    []map[string]any{{"a": 1, "b": 2}},
		Meta:    model.EnvelopeMeta{Timestamp: time.Now()},
	}
	settings := config.Settings{OutputMode: "json", SelectFields: []string{"a"}, ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if len(out) != 1 || out[0]["a"].(float64) != 1 {
		t.Fatalf("unexpected output: %s", buf.String())
	}
	if _, ok := out[0]["b"]; ok {
		t.Fatalf("field projection failed: %s", buf.String())
	}
}

func TestRenderSelectNestedField(t *testing.T) {
	env := model.Envelope{
		Success: true,
		Data: model.QuoteView{
			QuoteID:      7,
			OutAfterFees: model.AmountInfo{AmountBaseUnits: "950000", AmountDecimal: "0.95", Decimals: 6},
		},
	}
	settings := config.Settings{OutputMode: "json", SelectFields: []string{"quote_id", "estimated_out.amount_decimal"}, ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if out["quote_id"].(float64) != 7 || out["estimated_out.amount_decimal"] != "0.95" {
		t.Fatalf("unexpected projection: %s", buf.String())
	}
}

func TestRenderPlain(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: true,
		Data:    []map[string]any{{"name": "x", "amount": map[string]any{"decimals": 6}}},
		Meta:    model.EnvelopeMeta{Timestamp: time.Now()},
	}
	settings := config.Settings{OutputMode: "plain", ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "amount.decimals=6 name=x" {
		t.Fatalf("unexpected plain output: %q", got)
	}
}

func TestRenderPlainError(t *testing.T) {
	env := model.Envelope{
		Error: &model.ErrorBody{Code: 23, Type: "quote_expired", Kind: "quote_expired", Message: "This quote has been replaced by a newer one."},
	}
	var buf bytes.Buffer
	if err := Render(&buf, env, config.Settings{OutputMode: "plain"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "error quote_expired (code 23):") {
		t.Fatalf("unexpected plain error: %q", buf.String())
	}
}

func TestPrinterWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	p.Success("order %s confirmed", "abc")
	p.Fail("declined")
	if buf.String() != "order abc confirmed\ndeclined\n" {
		t.Fatalf("unexpected printer output: %q", buf.String())
	}
}
