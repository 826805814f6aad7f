package metronome

import (
	"testing"

	"frameq/internal/config"
	logx "frameq/pkg/logx"
)

func TestRegisterValidatesCallable(t *testing.T) {
	t.Parallel()
	svc := NewService(logx.Nop(), nil, nil)

	if err := svc.Register("ok", nil, func() {}); err != nil {
		t.Fatalf("Register(func) = %v", err)
	}
	if err := svc.Register("ok", nil, func() {}); err == nil {
		t.Fatal("duplicate Register accepted")
	}
	if err := svc.Register("bad", nil, "Method"); err == nil {
		t.Fatal("Register with method name and nil target accepted")
	}
	if err := svc.Register("bad2", nil, 42); err == nil {
		t.Fatal("Register with non-callable accepted")
	}
}

func TestApplyRejectsBadBindings(t *testing.T) {
	t.Parallel()
	svc := NewService(logx.Nop(), nil, nil)
	if err := svc.Register("tick", nil, func() {}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		entries []config.MetronomeEntry
		wantErr bool
	}{
		{
			name:    "valid",
			entries: []config.MetronomeEntry{{Name: "a", Spec: "30s", Job: "tick"}},
		},
		{
			name:    "unknown job",
			entries: []config.MetronomeEntry{{Name: "a", Spec: "30s", Job: "nope"}},
			wantErr: true,
		},
		{
			name:    "bad spec",
			entries: []config.MetronomeEntry{{Name: "a", Spec: "whenever", Job: "tick"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Apply(tt.entries)
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Apply: %v", err)
			}
		})
	}
}

func TestApplyRejectionKeepsPreviousBindings(t *testing.T) {
	t.Parallel()
	svc := NewService(logx.Nop(), nil, nil)
	if err := svc.Register("tick", nil, func() {}); err != nil {
		t.Fatal(err)
	}

	good := []config.MetronomeEntry{{Name: "a", Spec: "30s", Job: "tick"}}
	if err := svc.Apply(good); err != nil {
		t.Fatal(err)
	}
	if err := svc.Apply([]config.MetronomeEntry{{Name: "b", Spec: "30s", Job: "nope"}}); err == nil {
		t.Fatal("expected rejection")
	}

	snap := svc.Snapshot()
	if len(snap) != 1 || snap[0].Name != "a" {
		t.Fatalf("snapshot = %+v, want the previous binding kept", snap)
	}
}
