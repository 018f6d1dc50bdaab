package util_test

import (
	"encoding/json"
	"testing"

	"github.com/downfa11-org/revread/util"
	"gopkg.in/yaml.v3"
)

func TestLogLevelUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		json string
		want util.LogLevel
	}{
		{"debug", "level: debug", `{"level":"debug"}`, util.LogLevelDebug},
		{"warning alias", "level: WARNING", `{"level":"warning"}`, util.LogLevelWarn},
		{"unknown falls back", "level: chatty", `{"level":"chatty"}`, util.LogLevelInfo},
		{"integer", "level: 3", `{"level":3}`, util.LogLevelError},
	}

	type wrapper struct {
		Level util.LogLevel `yaml:"level" json:"level"`
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var y wrapper
			if err := yaml.Unmarshal([]byte(tt.yaml), &y); err != nil {
				t.Fatalf("yaml: %v", err)
			}
			if y.Level != tt.want {
				t.Errorf("yaml level = %v; want %v", y.Level, tt.want)
			}

			var j wrapper
			if err := json.Unmarshal([]byte(tt.json), &j); err != nil {
				t.Fatalf("json: %v", err)
			}
			if j.Level != tt.want {
				t.Errorf("json level = %v; want %v", j.Level, tt.want)
			}
		})
	}
}

func TestLogLevelRejectsInvalidType(t *testing.T) {
	var l util.LogLevel
	if err := json.Unmarshal([]byte(`[1]`), &l); err == nil {
		t.Fatalf("expected error for array log level")
	}
}

func TestByteSizeUnmarshal(t *testing.T) {
	type wrapper struct {
		Size util.ByteSize `yaml:"size" json:"size"`
	}

	tests := []struct {
		name string
		yaml string
		json string
		want util.ByteSize
	}{
		{"plain", "size: 4096", `{"size":4096}`, 4096},
		{"decimal suffix", "size: 4MB", `{"size":"4MB"}`, 4_000_000},
		{"binary suffix", "size: 64KiB", `{"size":"64KiB"}`, 64 << 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var y wrapper
			if err := yaml.Unmarshal([]byte(tt.yaml), &y); err != nil {
				t.Fatalf("yaml: %v", err)
			}
			if y.Size != tt.want {
				t.Errorf("yaml size = %d; want %d", y.Size, tt.want)
			}

			var j wrapper
			if err := json.Unmarshal([]byte(tt.json), &j); err != nil {
				t.Fatalf("json: %v", err)
			}
			if j.Size != tt.want {
				t.Errorf("json size = %d; want %d", j.Size, tt.want)
			}
		})
	}

	var y wrapper
	if err := yaml.Unmarshal([]byte("size: lots"), &y); err == nil {
		t.Fatalf("expected error for size without digits")
	}
}
