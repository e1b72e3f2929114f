package inventory

import (
	"fmt"

	"github.com/google/uuid"
)

// ItemInstance is a stack of one item definition in a backpack.
type ItemInstance struct {
	InstanceID string
	ItemDefID  string
	Quantity   int
}

// Backpack is a container with slot and weight limits.
type Backpack struct {
	MaxSlots  int
	MaxWeight float64
	items     []ItemInstance
}

// NewBackpack creates an empty Backpack with the given limits.
func NewBackpack(maxSlots int, maxWeight float64) *Backpack {
	return &Backpack{MaxSlots: maxSlots, MaxWeight: maxWeight}
}

// Add places quantity units of itemDefID into the backpack, topping up
// existing stacks before opening new slots. Either every unit fits or the
// backpack is left unchanged.
//
// Precondition: quantity > 0.
func (b *Backpack) Add(itemDefID string, quantity int, reg *Registry) error {
	def, ok := reg.Item(itemDefID)
	if !ok {
		return fmt.Errorf("backpack: unknown item %q", itemDefID)
	}
	if quantity <= 0 {
		return fmt.Errorf("backpack: quantity must be > 0")
	}
	if w := b.TotalWeight(reg) + float64(quantity)*def.Weight; w > b.MaxWeight {
		return fmt.Errorf("backpack: adding %d of %q would exceed weight limit (%.2f > %.2f)",
			quantity, itemDefID, w, b.MaxWeight)
	}

	stackSize := 1
	if def.Stackable {
		stackSize = def.MaxStack
	}

	// Plan first so a slot shortage leaves the backpack untouched.
	fills := make(map[int]int)
	remaining := quantity
	if def.Stackable {
		for i, inst := range b.items {
			if remaining == 0 {
				break
			}
			if inst.ItemDefID != def.ID || inst.Quantity >= stackSize {
				continue
			}
			take := min(stackSize-inst.Quantity, remaining)
			fills[i] = take
			remaining -= take
		}
	}
	newSlots := (remaining + stackSize - 1) / stackSize
	if len(b.items)+newSlots > b.MaxSlots {
		return fmt.Errorf("backpack: not enough slots for %d of %q", quantity, itemDefID)
	}

	for i, take := range fills {
		b.items[i].Quantity += take
	}
	for remaining > 0 {
		q := min(remaining, stackSize)
		b.items = append(b.items, ItemInstance{
			InstanceID: uuid.New().String(),
			ItemDefID:  def.ID,
			Quantity:   q,
		})
		remaining -= q
	}
	return nil
}

// Remove removes quantity units from the instance identified by instanceID.
//
// Postcondition: an instance reaching zero is removed from the backpack.
func (b *Backpack) Remove(instanceID string, quantity int) error {
	for i := range b.items {
		if b.items[i].InstanceID != instanceID {
			continue
		}
		if quantity <= 0 || quantity > b.items[i].Quantity {
			return fmt.Errorf("backpack: cannot remove %d from instance with quantity %d",
				quantity, b.items[i].Quantity)
		}
		b.items[i].Quantity -= quantity
		if b.items[i].Quantity == 0 {
			b.items = append(b.items[:i], b.items[i+1:]...)
		}
		return nil
	}
	return fmt.Errorf("backpack: instance %q not found", instanceID)
}

// RemoveItem removes quantity units of itemDefID, draining the last stacks first.
func (b *Backpack) RemoveItem(itemDefID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("backpack: quantity must be > 0")
	}
	if have := b.Count(itemDefID); have < quantity {
		return fmt.Errorf("backpack: have %d of %q, need %d", have, itemDefID, quantity)
	}
	for i := len(b.items) - 1; i >= 0 && quantity > 0; i-- {
		if b.items[i].ItemDefID != itemDefID {
			continue
		}
		take := min(b.items[i].Quantity, quantity)
		if err := b.Remove(b.items[i].InstanceID, take); err != nil {
			return err
		}
		quantity -= take
	}
	return nil
}

// Count returns the total units of itemDefID held.
func (b *Backpack) Count(itemDefID string) int {
	n := 0
	for _, inst := range b.items {
		if inst.ItemDefID == itemDefID {
			n += inst.Quantity
		}
	}
	return n
}

// Items returns a copy of every stack.
func (b *Backpack) Items() []ItemInstance {
	out := make([]ItemInstance, len(b.items))
	copy(out, b.items)
	return out
}

// UsedSlots returns the number of occupied slots.
func (b *Backpack) UsedSlots() int {
	return len(b.items)
}

// TotalWeight returns the sum of quantity*weight for all stacks.
func (b *Backpack) TotalWeight(reg *Registry) float64 {
	var total float64
	for _, inst := range b.items {
		if def, ok := reg.Item(inst.ItemDefID); ok {
			total += float64(inst.Quantity) * def.Weight
		}
	}
	return total
}
