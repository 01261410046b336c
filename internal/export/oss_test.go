package export

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"
)

func TestNormalizeOSSEndpoint(t *testing.T) {
	cases := []struct {
		name       string
		endpoint   string
		disableSSL bool
		want       string
		wantErr    bool
	}{
		{name: "empty", endpoint: "  ", wantErr: true},
		{name: "with scheme", endpoint: "https://oss-cn-hangzhou.aliyuncs.com", want: "https://oss-cn-hangzhou.aliyuncs.com"},
		{name: "bare host https", endpoint: "oss-cn-hangzhou.aliyuncs.com", want: "https://oss-cn-hangzhou.aliyuncs.com"},
		{name: "bare host http", endpoint: "oss-cn-hangzhou.aliyuncs.com", disableSSL: true, want: "http://oss-cn-hangzhou.aliyuncs.com"},
		{name: "trailing slash trimmed", endpoint: "oss-cn-hangzhou.aliyuncs.com/", want: "https://oss-cn-hangzhou.aliyuncs.com"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalizeOSSEndpoint(tc.endpoint, tc.disableSSL)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.endpoint)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestBuildObjectKey(t *testing.T) {
	exporter := &Exporter{hostName: "node-a"}
	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	key := exporter.buildObjectKey(at)
	if key != "slo-violations/node-a/20260314T150926Z.json" {
		t.Fatalf("unexpected object key: %s", key)
	}

	exporter = &Exporter{hostName: "  "}
	key = exporter.buildObjectKey(at)
	if key != "slo-violations/unknown-host/20260314T150926Z.json" {
		t.Fatalf("unexpected fallback key: %s", key)
	}
}

func TestContextReader_CancelStopsRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &contextReader{
		ctx:    ctx,
		reader: bytes.NewReader([]byte("payload")),
	}

	buf := make([]byte, 3)
	if _, err := reader.Read(buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancel()
	if _, err := reader.Read(buf); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestContextReader_NilSafe(t *testing.T) {
	var reader *contextReader
	if _, err := reader.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("expected EOF for nil reader, got %v", err)
	}
}

func TestNewExporter_NilArchive(t *testing.T) {
	if _, err := NewExporter(Options{Endpoint: "oss-cn-hangzhou.aliyuncs.com"}, nil); err == nil {
		t.Fatal("expected error for nil archive")
	}
}

func TestExportOnce_Uninitialized(t *testing.T) {
	exporter := &Exporter{}
	if err := exporter.ExportOnce(context.Background()); err == nil {
		t.Fatal("expected error for uninitialized bucket")
	}
}

func TestNormalizeHostName(t *testing.T) {
	if got := normalizeHostName(); got == "" {
		t.Fatal("expected non-empty host name")
	}
}
