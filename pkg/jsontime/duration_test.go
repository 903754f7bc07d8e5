package jsontime

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
)

type segment struct {
	Start Duration `json:"start" yaml:"start"`
}

func TestDuration_JSON(t *testing.T) {
	data, err := json.Marshal(segment{Start: Duration(10*time.Second + 500*time.Millisecond)})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"start":"10.5s"}` {
		t.Errorf("Marshal = %s", data)
	}

	var got segment
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Start.Std() != 10500*time.Millisecond {
		t.Errorf("round trip = %v", got.Start)
	}
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{`"1m30s"`, 90 * time.Second},
		{`1500000000`, 1500 * time.Millisecond},
		{`null`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			if err := json.Unmarshal([]byte(tt.in), &d); err != nil {
				t.Fatal(err)
			}
			if d.Std() != tt.want {
				t.Errorf("got %v, want %v", d, tt.want)
			}
		})
	}

	for _, bad := range []string{`"soon"`, `true`, `1.5`} {
		var d Duration
		if err := json.Unmarshal([]byte(bad), &d); err == nil {
			t.Errorf("Unmarshal(%s) should fail", bad)
		}
	}
}

func TestDuration_YAML(t *testing.T) {
	data, err := yaml.Marshal(segment{Start: Duration(20 * time.Second)})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "start: 20s") {
		t.Errorf("yaml = %s", data)
	}
}
