package inventory

import (
	"fmt"
	"sync"
)

// Inventory is a player's backpack plus gold purse. It receives battle
// rewards and supplies consumables. It is safe for concurrent use.
type Inventory struct {
	mu       sync.Mutex
	reg      *Registry
	backpack *Backpack
	gold     int
}

// NewInventory creates an Inventory over an empty backpack.
//
// Precondition: reg must be non-nil.
func NewInventory(reg *Registry, maxSlots int, maxWeight float64) *Inventory {
	return &Inventory{reg: reg, backpack: NewBackpack(maxSlots, maxWeight)}
}

// Registry returns the item catalogue backing this inventory.
func (inv *Inventory) Registry() *Registry { return inv.reg }

// AddItem adds quantity units of itemID.
func (inv *Inventory) AddItem(itemID string, quantity int) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.backpack.Add(itemID, quantity, inv.reg)
}

// HasItem reports whether at least one unit of itemID is held.
func (inv *Inventory) HasItem(itemID string) bool {
	return inv.Count(itemID) > 0
}

// Count returns the units of itemID held.
func (inv *Inventory) Count(itemID string) int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.backpack.Count(itemID)
}

// RemoveItem removes quantity units of itemID.
func (inv *Inventory) RemoveItem(itemID string, quantity int) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.backpack.RemoveItem(itemID, quantity)
}

// AddGold adds amount to the purse. Negative amounts are ignored.
func (inv *Inventory) AddGold(amount int) {
	if amount <= 0 {
		return
	}
	inv.mu.Lock()
	inv.gold += amount
	inv.mu.Unlock()
}

// Gold returns the purse balance.
func (inv *Inventory) Gold() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.gold
}

// Items returns a copy of every backpack stack.
func (inv *Inventory) Items() []ItemInstance {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.backpack.Items()
}

// Consumable returns a battle-usable handle for a held consumable.
func (inv *Inventory) Consumable(itemID string, roller Roller) (*Consumable, error) {
	def, ok := inv.reg.Item(itemID)
	if !ok {
		return nil, fmt.Errorf("inventory: unknown item %q", itemID)
	}
	if def.Kind != KindConsumable || def.Consumable == nil {
		return nil, fmt.Errorf("inventory: item %q is not a consumable", itemID)
	}
	if !inv.HasItem(itemID) {
		return nil, fmt.Errorf("inventory: no %q in backpack", itemID)
	}
	return &Consumable{def: def, inv: inv, roller: roller}, nil
}
