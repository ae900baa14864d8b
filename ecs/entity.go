package ecs

import "fmt"

// Entity is a generational handle. A handle stays invalid once its slot has
// been recycled.
type Entity struct {
	ID  int
	Gen int
}

func (e Entity) Valid() bool {
	return e.ID > 0
}

func (e Entity) id() int {
	return e.ID
}

func (e Entity) String() string {
	return fmt.Sprintf("%d:%d", e.ID, e.Gen)
}
