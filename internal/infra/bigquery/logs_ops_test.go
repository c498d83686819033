package bigquery

import (
	"encoding/json"
	"testing"
)

func TestAppLogDetails(t *testing.T) {
	got, err := appLogDetails(map[string]any{"file_id": "f1", "rows": 5})
	if err != nil {
		t.Fatalf("appLogDetails() error = %v", err)
	}
	if !got.Valid {
		t.Error("Valid = false, want true")
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(got.JSONVal), &decoded); err != nil {
		t.Fatalf("JSONVal is not valid JSON: %v", err)
	}
	if decoded["file_id"] != "f1" {
		t.Errorf("file_id = %v, want f1", decoded["file_id"])
	}
	if decoded["rows"] != float64(5) {
		t.Errorf("rows = %v, want 5", decoded["rows"])
	}
}

func TestAppLogDetails_Unencodable(t *testing.T) {
	_, err := appLogDetails(map[string]any{"ch": make(chan int)})
	if err == nil {
		t.Fatal("appLogDetails() succeeded on an unencodable value")
	}
}
