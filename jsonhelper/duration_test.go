package jsonhelper

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDurationUnmarshalJSON(t *testing.T) {
	for _, c := range []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{`"1s"`, time.Second, false},
		{`"1m30s"`, 90 * time.Second, false},
		{`"250ms"`, 250 * time.Millisecond, false},
		{`5`, 5 * time.Second, false},
		{`0.5`, 500 * time.Millisecond, false},
		{`0`, 0, false},
		{`"5"`, 0, true},
		{`"forever"`, 0, true},
		{`true`, 0, true},
		{`1e300`, 0, true},
	} {
		var d Duration
		err := json.Unmarshal([]byte(c.in), &d)
		if (err != nil) != c.wantErr {
			t.Errorf("Unmarshal(%s) error = %v, wantErr %v", c.in, err, c.wantErr)
			continue
		}
		if err == nil && d.Value() != c.want {
			t.Errorf("Unmarshal(%s) = %v, want %v", c.in, d.Value(), c.want)
		}
	}
}

func TestDurationNullKeepsValue(t *testing.T) {
	d := Duration(time.Second)
	if err := json.Unmarshal([]byte(`null`), &d); err != nil {
		t.Fatalf("Unmarshal(null) failed: %v", err)
	}
	if d.Value() != time.Second {
		t.Errorf("null changed the value to %v", d.Value())
	}
}

func TestDurationMarshalJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Timeout Duration `json:"timeout"`
	}{Duration(1500 * time.Millisecond)})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if got, want := string(b), `{"timeout":"1.5s"}`; got != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}
}
