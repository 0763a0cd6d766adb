package remote

import (
	"encoding/json"
	"errors"
	"testing"

	"fincache/internal/log"
)

type item struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount,omitempty"`
}

func ids(items []item) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantKind   Kind
		wantIDs    []int64
		mismatches int
	}{
		{"data object", `{"code":200,"data":{"id":1}}`, Single, []int64{1}, 0},
		{"rows mixed nesting", `{"code":200,"rows":[[{"id":1}],{"id":2}]}`, Collection, []int64{1, 2}, 0},
		{"neither", `{"code":200}`, Empty, []int64{}, 0},
		{"both null", `{"code":200,"data":null,"rows":null}`, Empty, []int64{}, 0},
		{"rows win over data", `{"code":200,"data":{"id":9},"rows":[{"id":1}]}`, Collection, []int64{1}, 0},
		{"empty rows fall back to data", `{"code":200,"data":{"id":9},"rows":[]}`, Single, []int64{9}, 0},
		{"data array", `{"code":200,"data":[{"id":3},[{"id":4},{"id":5}]]}`, Collection, []int64{3, 4, 5}, 0},
		{"bad element skipped", `{"code":200,"rows":[{"id":1},"oops",{"id":2}]}`, Collection, []int64{1, 2}, 1},
		{"rows not an array", `{"code":200,"rows":{"id":1},"data":{"id":7}}`, Single, []int64{7}, 1},
		{"null elements dropped", `{"code":200,"rows":[null,{"id":1},[null]]}`, Collection, []int64{1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env Envelope
			if err := json.Unmarshal([]byte(tt.body), &env); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			shape := Normalize[item](&env)
			if shape.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", shape.Kind, tt.wantKind)
			}
			if shape.Items == nil {
				t.Error("items must never be nil")
			}
			if got := ids(shape.Items); !equalIDs(got, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", got, tt.wantIDs)
			}
			if len(shape.Mismatches) != tt.mismatches {
				t.Errorf("mismatches = %v, want %d", shape.Mismatches, tt.mismatches)
			}
			for _, err := range shape.Mismatches {
				if !errors.Is(err, ErrShapeMismatch) {
					t.Errorf("mismatch %v does not wrap ErrShapeMismatch", err)
				}
			}
		})
	}
}

func TestNormalizeIsStable(t *testing.T) {
	env := &Envelope{Code: CodeOK, Rows: json.RawMessage(`[[{"id":1}],{"id":2}]`)}
	first := Normalize[item](env)

	// Re-wrapping the normalized collection must not change it.
	again, err := Page(first.Items, len(first.Items))
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	second := Normalize[item](again)
	if !equalIDs(ids(first.Items), ids(second.Items)) {
		t.Fatalf("normalization not idempotent: %v vs %v", ids(first.Items), ids(second.Items))
	}
}

func TestItemsReportsServerError(t *testing.T) {
	_, err := Items[item](Fail(500, "boom"), log.Discard())
	var se *ServerError
	if !errors.As(err, &se) || se.Code != 500 || se.Msg != "boom" {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if !errors.Is(err, ErrServer) {
		t.Fatal("ServerError must match ErrServer")
	}

	if _, err := Items[item](nil, log.Discard()); !errors.Is(err, ErrTransport) {
		t.Fatalf("nil envelope should be a transport failure, got %v", err)
	}
}

func TestFirstAndObject(t *testing.T) {
	env, _ := OK(item{ID: 4, Amount: 50})
	got, ok, err := First[item](env, log.Discard())
	if err != nil || !ok || got.ID != 4 || got.Amount != 50 {
		t.Fatalf("First = %+v ok=%v err=%v", got, ok, err)
	}

	_, ok, err = First[item](&Envelope{Code: CodeOK}, log.Discard())
	if err != nil || ok {
		t.Fatalf("empty envelope: ok=%v err=%v", ok, err)
	}

	stats, _ := OK(map[string]any{"totalIncome": 10})
	m, err := Object[map[string]any](stats, log.Discard())
	if err != nil || m["totalIncome"] != float64(10) {
		t.Fatalf("Object = %v err=%v", m, err)
	}

	bad := &Envelope{Code: CodeOK, Data: json.RawMessage(`[1,2]`)}
	m, err = Object[map[string]any](bad, log.Discard())
	if err != nil || m != nil {
		t.Fatalf("shape mismatch should yield zero value without error, got %v %v", m, err)
	}
}

func TestParamsString(t *testing.T) {
	p := Params{"to": "2025-01-31", "from": "2025-01-01", "period": "monthly"}
	if got := p.String(); got != "from=2025-01-01&period=monthly&to=2025-01-31" {
		t.Fatalf("String = %q", got)
	}
}
