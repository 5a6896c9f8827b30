package config

import "testing"

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "", want: DefaultMaxBodySize},
		{in: "1048576", want: 1048576},
		{in: "512KB", want: 512 << 10},
		{in: "1mb", want: 1 << 20},
		{in: "2 GB", want: 2 << 30},
		{in: "100B", want: 100},
		{in: "0", wantErr: true},
		{in: "-5MB", wantErr: true},
		{in: "lots", wantErr: true},
		{in: "9223372036854775807GB", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseByteSize(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseByteSize(%q) expected error, got %d", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseByteSize(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseByteSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
