package gcsuploader

import "testing"

func TestExtractFilenameFromGCSURI(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{"nested path", "gs://bucket/uploads/2026/01/02/abc-statement.csv", "abc-statement.csv"},
		{"flat object", "gs://bucket/file.csv", "file.csv"},
		{"bucket only", "gs://bucket", "bucket"},
		{"no scheme", "bucket/folder/file.csv", "file.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractFilenameFromGCSURI(tt.uri); got != tt.want {
				t.Errorf("ExtractFilenameFromGCSURI(%q) = %q, want %q", tt.uri, got, tt.want)
			}
		})
	}
}

func TestSplitGCSURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"valid", "gs://my-bucket/uploads/file.csv", "my-bucket", "uploads/file.csv", false},
		{"missing scheme", "my-bucket/uploads/file.csv", "", "", true},
		{"no object path", "gs://my-bucket", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := splitGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("splitGCSURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("splitGCSURI(%q) = (%q, %q), want (%q, %q)", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}
