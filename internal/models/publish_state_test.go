package models

import "testing"

func TestPublishStateRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		state  PublishState
		column string
	}{
		{name: "unpublished", state: Unpublished(), column: "0"},
		{name: "partial", state: Partial(), column: "2"},
		{name: "published", state: Published("109501"), column: "109501"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Column(); got != tt.column {
				t.Errorf("Column() = %q, want %q", got, tt.column)
			}
			if got := ParsePublishState(tt.column); got != tt.state {
				t.Errorf("ParsePublishState(%q) = %+v, want %+v", tt.column, got, tt.state)
			}
		})
	}
}

func TestParsePublishState_EmptyColumn(t *testing.T) {
	if got := ParsePublishState(""); !got.IsUnpublished() {
		t.Errorf("Expected an empty column to read as unpublished, got %+v", got)
	}
}

func TestPublished_SentinelsMapBack(t *testing.T) {
	if got := Published("0"); got.Kind != StateUnpublished {
		t.Errorf("Published(\"0\") = %+v, want unpublished", got)
	}
	if got := Published("2"); got.Kind != StatePartial {
		t.Errorf("Published(\"2\") = %+v, want partial", got)
	}
}

func TestAnchor(t *testing.T) {
	if got := Published("42").Anchor(); got != "42" {
		t.Errorf("A published parent anchors to its remote id, got %q", got)
	}
	if got := Partial().Anchor(); got != "2" {
		t.Errorf("A partial parent anchors to its stored marker, got %q", got)
	}
}
