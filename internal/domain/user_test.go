package domain

import (
	"testing"
	"time"
)

func TestUserCanAnalyzeZeroLimitsDisableChecks(t *testing.T) {
	now := time.Now()
	u := &User{AnalysesToday: 9999, AnalysesHour: 9999, LastAnalysisAt: now}
	if ok, reason := u.CanAnalyze(QuotaLimits{}, now); !ok {
		t.Fatalf("CanAnalyze() = false, %q; want true with zero limits", reason)
	}
}

func TestUserRecordAnalysisRollsOverAtUTCMidnight(t *testing.T) {
	u := &User{}
	late := time.Date(2026, 1, 1, 23, 59, 0, 0, time.UTC)
	u.RecordAnalysis(late)
	u.RecordAnalysis(late.Add(30 * time.Second))
	if u.AnalysesToday != 2 || u.AnalysesHour != 2 {
		t.Fatalf("counts = %d/%d, want 2/2", u.AnalysesToday, u.AnalysesHour)
	}

	u.RecordAnalysis(late.Add(2 * time.Minute))
	if u.AnalysesToday != 1 || u.AnalysesHour != 1 {
		t.Fatalf("after midnight counts = %d/%d, want 1/1", u.AnalysesToday, u.AnalysesHour)
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		mime    string
		wantErr bool
	}{
		{"plain base64", "aGVsbG8=", "image/jpeg", false},
		{"data url", "data:image/png;base64,aGVsbG8=", "image/png", false},
		{"empty", "", "", true},
		{"garbage", "%%%", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeFrame(tt.payload, time.Now())
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if f.MIMEType != tt.mime || string(f.Data) != "hello" {
				t.Fatalf("DecodeFrame() = %q %q", f.MIMEType, f.Data)
			}
			if f.Base64() != "aGVsbG8=" {
				t.Fatalf("Base64() = %q", f.Base64())
			}
		})
	}
}
