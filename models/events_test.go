package models

import (
	"encoding/json"
	"testing"
)

func TestEnterQueueEventValidate(t *testing.T) {
	cases := []struct {
		name    string
		event   EnterQueueEvent
		wantErr bool
	}{
		{"valid", EnterQueueEvent{PlayerID: "alice", Elo: 1000}, false},
		{"zero elo ok", EnterQueueEvent{PlayerID: "alice"}, false},
		{"missing player", EnterQueueEvent{Elo: 1000}, true},
		{"negative elo", EnterQueueEvent{PlayerID: "alice", Elo: -1}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.event.Validate()
			if (err != nil) != c.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}

func TestDrawMadeEventValidate(t *testing.T) {
	valid := DrawMadeEvent{RoomID: "r1", PlayerID: "alice", Image: "aGk=", TargetSign: "A"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	cases := []DrawMadeEvent{
		{PlayerID: "alice", Image: "aGk=", TargetSign: "A"},
		{RoomID: "r1", Image: "aGk=", TargetSign: "A"},
		{RoomID: "r1", PlayerID: "alice", TargetSign: "A"},
		{RoomID: "r1", PlayerID: "alice", Image: "aGk="},
	}
	for i, c := range cases {
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: incomplete event must be rejected", i)
		}
	}
}

func TestPlayerReadyEventValidate(t *testing.T) {
	if err := (&PlayerReadyEvent{RoomID: "r1", PlayerID: "alice"}).Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}
	if err := (&PlayerReadyEvent{RoomID: "r1"}).Validate(); err == nil {
		t.Fatal("missing player_id must be rejected")
	}
	if err := (&PlayerReadyEvent{PlayerID: "alice"}).Validate(); err == nil {
		t.Fatal("missing room_id must be rejected")
	}
}

func TestEventEnvelopeDecoding(t *testing.T) {
	raw := []byte(`{"type":"draw_made","room_id":"r1","player_id":"alice","image":"aGk=","target_sign":"A"}`)

	var envelope EventEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("envelope decode failed: %v", err)
	}
	if envelope.Type != EventDrawMade {
		t.Fatalf("unexpected type %q", envelope.Type)
	}

	var event DrawMadeEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if event.TargetSign != "A" || event.PlayerID != "alice" {
		t.Fatalf("unexpected payload: %+v", event)
	}
}

func TestRoundResultMessageNullWinner(t *testing.T) {
	msg := RoundResultMessage{
		Type:     "round_result",
		RoomID:   "r1",
		IsReplay: true,
		Scores:   map[string]int{"alice": 0, "bob": 0},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if winner, present := decoded["winner_id"]; !present || winner != nil {
		t.Fatalf("replay must serialize winner_id as null, got %v", winner)
	}
}
