package bridge

import "testing"

func TestDecodeControlParsesCompletedMarker(t *testing.T) {
	control, err := decodeControl([]byte(`{"type":"Completed"}`))
	if err != nil {
		t.Fatalf("expected completed marker to decode, got %v", err)
	}

	if control.Type != controlCompleted {
		t.Fatalf("expected type %q, got %q", controlCompleted, control.Type)
	}
}

func TestDecodeControlParsesErrorWithMessage(t *testing.T) {
	control, err := decodeControl([]byte(`{"type":"Error","message":"voice not found"}`))
	if err != nil {
		t.Fatalf("expected error frame to decode, got %v", err)
	}

	if control.Type != controlError {
		t.Fatalf("expected type %q, got %q", controlError, control.Type)
	}
	if control.Message != "voice not found" {
		t.Fatalf("expected message to carry through, got %q", control.Message)
	}
}

func TestDecodeControlRejectsMalformedFrames(t *testing.T) {
	if _, err := decodeControl([]byte(`audio?`)); err == nil {
		t.Fatalf("expected non-JSON frame to be rejected")
	}

	if _, err := decodeControl([]byte(`{}`)); err == nil {
		t.Fatalf("expected frame without type to be rejected")
	}
}
