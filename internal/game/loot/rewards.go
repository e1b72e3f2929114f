package loot

import (
	"go.uber.org/zap"
)

// Rewards is the inventory collaborator that receives a battle's loot.
type Rewards interface {
	AddGold(amount int)
	AddItem(itemID string, quantity int) error
}

// Apply transfers res into r. An item the inventory rejects is logged and
// skipped; the remaining entries are still applied.
//
// Postcondition: Returns the number of entries accepted by r.
func Apply(res Result, r Rewards, logger *zap.Logger) int {
	if r == nil {
		return 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if res.Gold > 0 {
		r.AddGold(res.Gold)
	}
	applied := 0
	for _, e := range res.Items {
		if err := r.AddItem(e.ItemID, e.Quantity); err != nil {
			logger.Warn("loot: reward item rejected",
				zap.String("item", e.ItemID),
				zap.Int("quantity", e.Quantity),
				zap.Error(err),
			)
			continue
		}
		applied++
	}
	return applied
}
