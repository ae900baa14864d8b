package sim

import "math"

// Damageable receives the consequences of health changes.
type Damageable interface {
	ReceiveDamage(amount float64)
	Die()
}

type Health struct {
	Current float64
	Max     float64
	Owner   Damageable
	dead    bool
}

func NewHealth(maxHealth float64, owner Damageable) *Health {
	return &Health{Current: maxHealth, Max: maxHealth, Owner: owner}
}

// ChangeHealth applies a signed change clamped to Max. Losses are forwarded to
// the owner as damage and the owner dies once health reaches zero.
func (h *Health) ChangeHealth(amount float64) {
	if h.dead || amount == 0 {
		return
	}
	h.Current = math.Max(0, math.Min(h.Current+amount, h.Max))
	if amount < 0 && h.Owner != nil {
		h.Owner.ReceiveDamage(-amount)
	}
	if h.Current <= 0 {
		h.Die()
	}
}

func (h *Health) Die() {
	if h.dead {
		return
	}
	h.dead = true
	h.Current = 0
	if h.Owner != nil {
		h.Owner.Die()
	}
}

func (h *Health) Dead() bool { return h.dead }
