package model

// GroupID identifies a running group.
type GroupID = int64

// Group is a running group with its membership materialized.
type Group struct {
	ID            GroupID
	Name          string
	Level         string
	MemberIDs     []MemberID
	ResponsibleID *MemberID // staff member administratively in charge, optional
}

// Has reports whether id is an ordinary member of the group.
func (g Group) Has(id MemberID) bool {
	for _, m := range g.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}

// Recipients returns the members followed by the responsible party,
// without duplicates and in first-seen order.
func (g Group) Recipients() []MemberID {
	out := make([]MemberID, 0, len(g.MemberIDs)+1)
	seen := make(map[MemberID]struct{}, len(g.MemberIDs)+1)
	add := func(id MemberID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range g.MemberIDs {
		add(id)
	}
	if g.ResponsibleID != nil {
		add(*g.ResponsibleID)
	}
	return out
}
