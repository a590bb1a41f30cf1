package sessions

import "testing"

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		kind    PeerKind
		chatID  string
		want    string
	}{
		{"telegram group", "telegram", PeerGroup, "-100123456", "chat:telegram:group:-100123456"},
		{"telegram dm", "telegram", PeerDirect, "386246614", "chat:telegram:direct:386246614"},
		{"discord group", "discord", PeerGroup, "1183736249", "chat:discord:group:1183736249"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildKey(tt.channel, tt.kind, tt.chatID); got != tt.want {
				t.Errorf("BuildKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		channel string
		kind    PeerKind
		chatID  string
		ok      bool
	}{
		{"group roundtrip", "chat:telegram:group:-100123456", "telegram", PeerGroup, "-100123456", true},
		{"dm roundtrip", "chat:discord:direct:42", "discord", PeerDirect, "42", true},
		{"chat id with colon", "chat:telegram:group:-100:topic:7", "telegram", PeerGroup, "-100:topic:7", true},
		{"wrong prefix", "agent:telegram:group:1", "", "", "", false},
		{"bad kind", "chat:telegram:broadcast:1", "", "", "", false},
		{"too short", "chat:telegram", "", "", "", false},
		{"empty", "", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channel, kind, chatID, ok := ParseKey(tt.key)
			if ok != tt.ok {
				t.Fatalf("ParseKey(%q) ok = %v, want %v", tt.key, ok, tt.ok)
			}
			if channel != tt.channel || kind != tt.kind || chatID != tt.chatID {
				t.Errorf("ParseKey(%q) = (%q, %q, %q), want (%q, %q, %q)",
					tt.key, channel, kind, chatID, tt.channel, tt.kind, tt.chatID)
			}
		})
	}
}

func TestPeerKindFromGroup(t *testing.T) {
	if PeerKindFromGroup(true) != PeerGroup {
		t.Error("PeerKindFromGroup(true) != PeerGroup")
	}
	if PeerKindFromGroup(false) != PeerDirect {
		t.Error("PeerKindFromGroup(false) != PeerDirect")
	}
}
