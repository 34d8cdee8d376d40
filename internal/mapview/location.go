package mapview

import (
	"sort"
	"strings"
)

// HomeOwner names the bot whose home is at a location
type HomeOwner struct {
	BotID BotID  `json:"bot_id"`
	Name  string `json:"name"`
}

// InteractionEntry is one interaction inside a group
type InteractionEntry struct {
	Time string `json:"time"`
	Type string `json:"type"`
}

// InteractionGroup collects interactions between the same set of bots
type InteractionGroup struct {
	Key      string             `json:"key"`
	BotIDs   []BotID            `json:"bot_ids"`
	BotNames []string           `json:"bot_names,omitempty"`
	Count    int                `json:"count"`
	Entries  []InteractionEntry `json:"entries"`
}

// Label is the display name of the group's participants.
func (g InteractionGroup) Label() string {
	if len(g.BotNames) > 0 {
		return strings.Join(g.BotNames, " & ")
	}
	ids := make([]string, len(g.BotIDs))
	for i, id := range g.BotIDs {
		ids[i] = id.String()
	}
	return "Bots " + strings.Join(ids, " & ")
}

// LocationInfo is the detail panel for a clicked cell
type LocationInfo struct {
	Point             Point              `json:"point"`
	Home              *HomeOwner         `json:"home,omitempty"`
	BotsHere          []Bot              `json:"bots_here"`
	Airports          []Airport          `json:"airports,omitempty"`
	TotalInteractions int                `json:"total_interactions"`
	Groups            []InteractionGroup `json:"groups"`
}

// SelectLocation resolves what is at (x, y) in a snapshot: whose home it
// is, which bots stand there, and the interactions recorded there grouped
// by participant set.
func SelectLocation(snap *MapSnapshot, airports []Airport, x, y int) LocationInfo {
	info := LocationInfo{Point: Point{X: x, Y: y}, BotsHere: []Bot{}, Groups: []InteractionGroup{}}
	if snap == nil {
		return info
	}

	for _, home := range snap.BotHomes {
		if home.Placed && home.X == x && home.Y == y {
			name := "Bot " + home.ID.String()
			if bot, ok := snap.FindBot(home.ID); ok {
				name = bot.DisplayName()
			}
			info.Home = &HomeOwner{BotID: home.ID, Name: name}
			break
		}
	}

	for _, bot := range snap.Bots {
		if bot.X == x && bot.Y == y {
			info.BotsHere = append(info.BotsHere, bot)
		}
	}

	for _, a := range airports {
		if a.X == x && a.Y == y {
			info.Airports = append(info.Airports, a)
		}
	}

	var here []Interaction
	for _, in := range snap.Interactions {
		if in.X == x && in.Y == y {
			here = append(here, in)
		}
	}
	info.TotalInteractions = len(here)
	info.Groups = GroupInteractions(here)
	return info
}

// GroupInteractions groups interactions by the unordered set of participant
// ids. Groups keep first-seen order; entries inside a group are oldest first.
func GroupInteractions(interactions []Interaction) []InteractionGroup {
	groups := []InteractionGroup{}
	index := make(map[string]int)

	for _, in := range interactions {
		key := groupKey(in.BotIDs)
		i, ok := index[key]
		if !ok {
			ids := append([]BotID(nil), in.BotIDs...)
			sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
			groups = append(groups, InteractionGroup{
				Key:      key,
				BotIDs:   ids,
				BotNames: in.BotNames,
			})
			i = len(groups) - 1
			index[key] = i
		}

		kind := in.Type
		if kind == "" {
			kind = "interaction"
		}
		groups[i].Entries = append(groups[i].Entries, InteractionEntry{Time: in.When(), Type: kind})
		groups[i].Count++
	}

	for i := range groups {
		entries := groups[i].Entries
		sort.SliceStable(entries, func(a, b int) bool {
			ta, okA := ParseTimestamp(entries[a].Time)
			tb, okB := ParseTimestamp(entries[b].Time)
			if !okA || !okB {
				return false
			}
			return ta.Before(tb)
		})
	}
	return groups
}
