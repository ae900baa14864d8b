package swarm

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownRole = errors.New("swarm: unknown role")

// Role selects an agent's patrol strategy. Spawning hands out roles in
// declaration order.
type Role int

const (
	Scout Role = iota
	Defender
	Worker
)

const roleCount = 3

func Roles() []Role {
	return []Role{Scout, Defender, Worker}
}

func (r Role) String() string {
	switch r {
	case Scout:
		return "scout"
	case Defender:
		return "defender"
	case Worker:
		return "worker"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scout":
		return Scout, nil
	case "defender":
		return Defender, nil
	case "worker":
		return Worker, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}
