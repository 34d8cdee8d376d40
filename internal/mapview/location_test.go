package mapview

import (
	"testing"
)

func TestGroupInteractions_OrderIndependentKey(t *testing.T) {
	groups := GroupInteractions([]Interaction{
		{X: 1, Y: 1, BotIDs: []BotID{2, 1}, LastInteraction: "2024-05-01 10:00:00", Type: "talk"},
		{X: 1, Y: 1, BotIDs: []BotID{1, 2}, LastInteraction: "2024-05-01 09:00:00"},
		{X: 1, Y: 1, BotIDs: []BotID{3, 1}, LastInteraction: "2024-05-01 11:00:00"},
	})

	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}

	pair := groups[0]
	if pair.Key != "1-2" {
		t.Errorf("key = %q, want 1-2", pair.Key)
	}
	if pair.Count != 2 {
		t.Errorf("count = %d, want 2", pair.Count)
	}
	if pair.Entries[0].Time != "2024-05-01 09:00:00" {
		t.Errorf("entries not oldest first: %+v", pair.Entries)
	}
	if pair.Entries[0].Type != "interaction" {
		t.Errorf("missing type should default to interaction, got %q", pair.Entries[0].Type)
	}
	if pair.Label() != "Bots 1 & 2" {
		t.Errorf("Label() = %q", pair.Label())
	}
	if groups[1].Key != "1-3" {
		t.Errorf("second key = %q, want 1-3", groups[1].Key)
	}
}

func TestGroupInteractions_DoesNotMutateInput(t *testing.T) {
	in := []Interaction{{BotIDs: []BotID{5, 2}}}
	GroupInteractions(in)
	if in[0].BotIDs[0] != 5 {
		t.Error("input bot ids were reordered")
	}
}

func TestSelectLocation(t *testing.T) {
	snap := &MapSnapshot{
		MapInfo: MapInfo{Width: 10, Height: 10},
		Bots: []Bot{
			{ID: 1, Name: "Ada", X: 3, Y: 4},
			{ID: 2, Name: "Bob", X: 3, Y: 4},
			{ID: 3, Name: "Cy", X: 4, Y: 3},
		},
		BotHomes: []BotHome{
			{ID: 1, X: 3, Y: 4, Placed: true},
			{ID: 3, X: 0, Y: 0, Placed: true},
		},
		Interactions: []Interaction{
			{X: 3, Y: 4, BotIDs: []BotID{1, 2}},
			{X: 4, Y: 3, BotIDs: []BotID{3}},
		},
	}
	airports := []Airport{{ID: 9, X: 3, Y: 4, Name: "Hub"}}

	info := SelectLocation(snap, airports, 3, 4)
	if info.Home == nil || info.Home.BotID != 1 || info.Home.Name != "Ada" {
		t.Errorf("Home = %+v, want Ada's home", info.Home)
	}
	if len(info.BotsHere) != 2 {
		t.Errorf("BotsHere = %d, want 2", len(info.BotsHere))
	}
	if info.TotalInteractions != 1 || len(info.Groups) != 1 {
		t.Errorf("interactions = %d/%d groups, want 1/1", info.TotalInteractions, len(info.Groups))
	}
	if len(info.Airports) != 1 {
		t.Errorf("Airports = %d, want 1", len(info.Airports))
	}

	empty := SelectLocation(snap, nil, 9, 9)
	if empty.Home != nil || len(empty.BotsHere) != 0 || empty.TotalInteractions != 0 {
		t.Errorf("empty location = %+v", empty)
	}
}

func TestSelectLocation_HomeOfUnknownBot(t *testing.T) {
	snap := &MapSnapshot{BotHomes: []BotHome{{ID: 42, X: 1, Y: 1, Placed: true}}}
	info := SelectLocation(snap, nil, 1, 1)
	if info.Home == nil || info.Home.Name != "Bot 42" {
		t.Errorf("Home = %+v, want fallback name", info.Home)
	}
}
