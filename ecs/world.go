package ecs

type store interface {
	remove(id int)
}

// World owns entities and their component stores.
type World struct {
	entities entityStore
	stores   map[ComponentID]store
	events   EventQueue
}

func NewWorld() *World {
	return &World{stores: make(map[ComponentID]store)}
}

func CreateEntity(w *World) Entity {
	return w.entities.create()
}

// DestroyEntity drops every component of e and recycles its slot. It returns
// false when e was already dead.
func DestroyEntity(w *World, e Entity) bool {
	if !w.entities.isAlive(e) {
		return false
	}
	for _, s := range w.stores {
		s.remove(e.ID)
	}
	return w.entities.destroy(e)
}

func IsAlive(w *World, e Entity) bool {
	return w.entities.isAlive(e)
}

// Entities returns the live entities in creation order.
func Entities(w *World) []Entity {
	out := make([]Entity, len(w.entities.alive))
	copy(out, w.entities.alive)
	return out
}

// Events returns the world event queue.
func (w *World) Events() *EventQueue {
	return &w.events
}

func storeFor[T any](w *World, kind ComponentKind[T], create bool) *SparseSet[T] {
	if s, ok := w.stores[kind.id]; ok {
		return s.(*SparseSet[T])
	}
	if !create {
		return nil
	}
	s := &SparseSet[T]{}
	w.stores[kind.id] = s
	return s
}

func Add[T any](w *World, e Entity, kind ComponentKind[T], value *T) error {
	if !kind.Valid() {
		return ErrInvalidComponentKind
	}
	if value == nil {
		return ErrNilComponent
	}
	if !w.entities.isAlive(e) {
		return ErrEntityNotAlive
	}
	storeFor(w, kind, true).Set(e.ID, value)
	return nil
}

func Get[T any](w *World, e Entity, kind ComponentKind[T]) (*T, bool) {
	if !w.entities.isAlive(e) {
		return nil, false
	}
	return storeFor(w, kind, false).Get(e.ID)
}

func Has[T any](w *World, e Entity, kind ComponentKind[T]) bool {
	return w.entities.isAlive(e) && storeFor(w, kind, false).Has(e.ID)
}

func Remove[T any](w *World, e Entity, kind ComponentKind[T]) bool {
	if !w.entities.isAlive(e) {
		return false
	}
	s := storeFor(w, kind, false)
	if s == nil {
		return false
	}
	return s.Remove(e.ID)
}

func (w *World) entityFor(id int) Entity {
	return Entity{ID: id, Gen: w.entities.gen[id-1]}
}

// ForEach visits every entity holding kind. The dense ids are snapshotted so
// fn may add or remove components.
func ForEach[T any](w *World, kind ComponentKind[T], fn func(Entity, *T)) {
	s := storeFor(w, kind, false)
	if s == nil {
		return
	}
	ids := append([]int(nil), s.dense...)
	for _, id := range ids {
		v, ok := s.Get(id)
		if !ok {
			continue
		}
		fn(w.entityFor(id), v)
	}
}

func ForEach2[A, B any](w *World, ka ComponentKind[A], kb ComponentKind[B], fn func(Entity, *A, *B)) {
	sb := storeFor(w, kb, false)
	if sb == nil {
		return
	}
	ForEach(w, ka, func(e Entity, a *A) {
		if b, ok := sb.Get(e.ID); ok {
			fn(e, a, b)
		}
	})
}

func ForEach3[A, B, C any](w *World, ka ComponentKind[A], kb ComponentKind[B], kc ComponentKind[C], fn func(Entity, *A, *B, *C)) {
	sc := storeFor(w, kc, false)
	if sc == nil {
		return
	}
	ForEach2(w, ka, kb, func(e Entity, a *A, b *B) {
		if c, ok := sc.Get(e.ID); ok {
			fn(e, a, b, c)
		}
	})
}

// First returns the first entity holding kind in store order.
func First[T any](w *World, kind ComponentKind[T]) (Entity, *T, bool) {
	s := storeFor(w, kind, false)
	if s == nil || s.Len() == 0 {
		return Entity{}, nil, false
	}
	id := s.dense[0]
	return w.entityFor(id), s.values[0], true
}
