package config

import (
	"errors"
	"testing"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    Args
		wantErr error
	}{
		{name: "no args", args: nil, wantErr: ErrUsage},
		{name: "one arg", args: []string{"BNE"}, wantErr: ErrUsage},
		{name: "extra args ignored", args: []string{"BNE", "info", "4000", "extra", "more"}, want: Args{ID: "BNE", Info: "info", MapperPort: 4000}},
		{name: "extra args after bad port", args: []string{"BNE", "info", "x", "extra"}, wantErr: ErrInvalidPort},
		{name: "id and info", args: []string{"BNE", "Brisbane"}, want: Args{ID: "BNE", Info: "Brisbane"}},
		{name: "with mapper", args: []string{"BNE", "Brisbane", "4000"}, want: Args{ID: "BNE", Info: "Brisbane", MapperPort: 4000}},
		{name: "info with spaces", args: []string{"BNE", "Bris bane"}, want: Args{ID: "BNE", Info: "Bris bane"}},
		{name: "empty id", args: []string{"", "info"}, wantErr: ErrInvalidChar},
		{name: "colon in id", args: []string{"BN:E", "info"}, wantErr: ErrInvalidChar},
		{name: "newline in info", args: []string{"BNE", "in\nfo"}, wantErr: ErrInvalidChar},
		{name: "carriage return in info", args: []string{"BNE", "info\r"}, wantErr: ErrInvalidChar},
		{name: "char error wins over port", args: []string{"BN:E", "info", "x"}, wantErr: ErrInvalidChar},
		{name: "empty port", args: []string{"BNE", "info", ""}, wantErr: ErrInvalidPort},
		{name: "non-numeric port", args: []string{"BNE", "info", "40a0"}, wantErr: ErrInvalidPort},
		{name: "signed port", args: []string{"BNE", "info", "+4000"}, wantErr: ErrInvalidPort},
		{name: "zero port", args: []string{"BNE", "info", "0"}, wantErr: ErrInvalidPort},
		{name: "port too large", args: []string{"BNE", "info", "65536"}, wantErr: ErrInvalidPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArgs(tt.args)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
			if got.HasMapper() != (tt.want.MapperPort != 0) {
				t.Errorf("HasMapper mismatch for %+v", got)
			}
		})
	}
}

func TestParsePort(t *testing.T) {
	for _, s := range []string{"1", "80", "65535", "00080"} {
		if _, ok := ParsePort(s); !ok {
			t.Errorf("Expected %q to be a valid port", s)
		}
	}
	for _, s := range []string{"", "-1", " 80", "80 ", "1e3", "65536", "123456"} {
		if _, ok := ParsePort(s); ok {
			t.Errorf("Expected %q to be rejected", s)
		}
	}
}
