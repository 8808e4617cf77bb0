package world

import (
	"quickstack.ai/internal/protocol"
	"quickstack.ai/internal/stack/model"
)

// Inventory is a Cols x Rows slot grid. Row 0 is the hotbar.
type Inventory struct {
	Cols     int
	Rows     int
	MaxStack int

	slots []*model.ItemStack
}

func NewInventory(cols, rows, maxStack int) *Inventory {
	return &Inventory{Cols: cols, Rows: rows, MaxStack: maxStack, slots: make([]*model.ItemStack, cols*rows)}
}

func (inv *Inventory) index(x, y int) int { return y*inv.Cols + x }

// Items returns the occupied slots, hotbar first.
func (inv *Inventory) Items() []*model.ItemStack {
	out := make([]*model.ItemStack, 0, len(inv.slots))
	for _, s := range inv.slots {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (inv *Inventory) Contains(s *model.ItemStack) bool {
	if s == nil {
		return false
	}
	i := inv.index(s.Slot.X, s.Slot.Y)
	return i >= 0 && i < len(inv.slots) && inv.slots[i] == s
}

func (inv *Inventory) Remove(s *model.ItemStack) bool {
	if !inv.Contains(s) {
		return false
	}
	inv.slots[inv.index(s.Slot.X, s.Slot.Y)] = nil
	return true
}

func (inv *Inventory) limit(s *model.ItemStack) int {
	return min(inv.MaxStack, s.MaxStack())
}

func (inv *Inventory) Room(key model.ItemKey, limit int) int {
	room := 0
	for _, it := range inv.slots {
		switch {
		case it == nil:
			room += limit
		case it.Key == key && !it.HasCustomData():
			room += max(0, limit-it.Count)
		}
	}
	return room
}

// Add merges s into matching stacks, then fills empty slots below the
// hotbar before the hotbar itself. It is all-or-nothing.
func (inv *Inventory) Add(s *model.ItemStack) bool {
	if s == nil || s.Count <= 0 || s.Key.IsZero() {
		return false
	}
	limit := inv.limit(s)
	if s.HasCustomData() {
		limit = s.Count
		if inv.emptySlots() == 0 {
			return false
		}
	} else if inv.Room(s.Key, limit) < s.Count {
		return false
	}
	left := s.Count
	for _, it := range inv.slots {
		if left == 0 {
			return true
		}
		if s.HasCustomData() || it == nil || it.Key != s.Key || it.HasCustomData() {
			continue
		}
		n := min(limit-it.Count, left)
		if n > 0 {
			it.Count += n
			left -= n
		}
	}
	for _, i := range inv.fillOrder() {
		if left == 0 {
			break
		}
		if inv.slots[i] != nil {
			continue
		}
		n := min(limit, left)
		inv.slots[i] = &model.ItemStack{
			Key:        s.Key,
			Count:      n,
			Shared:     s.Shared,
			CustomData: s.CustomData,
			Slot:       model.Slot{X: i % inv.Cols, Y: i / inv.Cols},
		}
		left -= n
	}
	return true
}

func (inv *Inventory) emptySlots() int {
	n := 0
	for _, it := range inv.slots {
		if it == nil {
			n++
		}
	}
	return n
}

func (inv *Inventory) fillOrder() []int {
	out := make([]int, 0, len(inv.slots))
	for i := inv.Cols; i < len(inv.slots); i++ {
		out = append(out, i)
	}
	for i := 0; i < inv.Cols && i < len(inv.slots); i++ {
		out = append(out, i)
	}
	return out
}

// Place puts s at its own slot, replacing whatever was there.
func (inv *Inventory) Place(s *model.ItemStack) bool {
	i := inv.index(s.Slot.X, s.Slot.Y)
	if s.Slot.X < 0 || s.Slot.X >= inv.Cols || i < 0 || i >= len(inv.slots) {
		return false
	}
	inv.slots[i] = s
	return true
}

func (inv *Inventory) Total(key model.ItemKey) int { return model.SumCounts(inv.Items(), key) }

func (inv *Inventory) List() []protocol.ItemStack {
	items := inv.Items()
	out := make([]protocol.ItemStack, 0, len(items))
	for _, it := range items {
		out = append(out, protocol.ItemStack{Item: it.Key.String(), Count: it.Count, Slot: [2]int{it.Slot.X, it.Slot.Y}})
	}
	return out
}

// Hotbar marks row-0 stacks as low priority.
type Hotbar struct{}

func (Hotbar) LowPriority(s *model.ItemStack) bool { return s != nil && s.Slot.Y == 0 }
