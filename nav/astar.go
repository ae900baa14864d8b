package nav

import (
	"container/heap"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// FindPath returns waypoints from -> to ending exactly at to. The start point
// itself is not included.
func (s *Surface) FindPath(from, to mgl64.Vec3) ([]mgl64.Vec3, bool) {
	from = mgl64.Vec3{from[0], 0, from[2]}
	to = mgl64.Vec3{to[0], 0, to[2]}

	start, ok := s.coord(from)
	if !ok || !s.open(start) {
		start, ok = s.nearestOpen(from, s.cell*3)
		if !ok {
			return nil, false
		}
	}
	goal, ok := s.coord(to)
	if !ok || !s.open(goal) {
		return nil, false
	}

	cells := s.astar(start, goal)
	if len(cells) == 0 {
		return nil, false
	}

	points := make([]mgl64.Vec3, 0, len(cells)+1)
	for _, c := range cells[1:] {
		points = append(points, s.center(c))
	}
	if len(points) > 0 {
		points[len(points)-1] = to
	} else {
		points = append(points, to)
	}
	return s.smooth(from, points), true
}

// smooth drops waypoints that can be skipped in a straight walkable line.
func (s *Surface) smooth(from mgl64.Vec3, points []mgl64.Vec3) []mgl64.Vec3 {
	if len(points) < 2 {
		return points
	}
	out := make([]mgl64.Vec3, 0, len(points))
	anchor := from
	i := 0
	for i < len(points) {
		j := len(points) - 1
		for j > i && !s.clearLine(anchor, points[j]) {
			j--
		}
		out = append(out, points[j])
		anchor = points[j]
		i = j + 1
	}
	return out
}

func (s *Surface) astar(start, goal gridPos) []gridPos {
	total := s.gridW * s.gridH
	startIdx := start.y*s.gridW + start.x
	goalIdx := goal.y*s.gridW + goal.x

	cameFrom := make([]int, total)
	gScore := make([]float64, total)
	for i := range cameFrom {
		cameFrom[i] = -1
		gScore[i] = math.Inf(1)
	}
	gScore[startIdx] = 0

	open := &openSet{}
	heap.Init(open)
	heap.Push(open, &openItem{pos: start, f: heuristic(start, goal)})

	for open.Len() > 0 {
		cur := heap.Pop(open).(*openItem).pos
		curIdx := cur.y*s.gridW + cur.x
		if curIdx == goalIdx {
			return s.reconstruct(cameFrom, startIdx, goalIdx)
		}
		for _, n := range s.neighbors(cur) {
			idx := n.y*s.gridW + n.x
			if s.blocked[idx] {
				continue
			}
			tentative := gScore[curIdx] + 1
			if tentative < gScore[idx] {
				cameFrom[idx] = curIdx
				gScore[idx] = tentative
				heap.Push(open, &openItem{pos: n, f: tentative + heuristic(n, goal)})
			}
		}
	}
	return nil
}

func (s *Surface) reconstruct(cameFrom []int, startIdx, goalIdx int) []gridPos {
	path := make([]gridPos, 0, 32)
	for cur := goalIdx; cur != -1; cur = cameFrom[cur] {
		path = append(path, gridPos{x: cur % s.gridW, y: cur / s.gridW})
		if cur == startIdx {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func (s *Surface) neighbors(p gridPos) []gridPos {
	out := make([]gridPos, 0, 4)
	if p.x > 0 {
		out = append(out, gridPos{x: p.x - 1, y: p.y})
	}
	if p.x < s.gridW-1 {
		out = append(out, gridPos{x: p.x + 1, y: p.y})
	}
	if p.y > 0 {
		out = append(out, gridPos{x: p.x, y: p.y - 1})
	}
	if p.y < s.gridH-1 {
		out = append(out, gridPos{x: p.x, y: p.y + 1})
	}
	return out
}

func heuristic(a, b gridPos) float64 {
	return math.Abs(float64(a.x-b.x)) + math.Abs(float64(a.y-b.y))
}

type openItem struct {
	pos   gridPos
	f     float64
	index int
}

type openSet []*openItem

func (o openSet) Len() int           { return len(o) }
func (o openSet) Less(i, j int) bool { return o[i].f < o[j].f }
func (o openSet) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].index = i
	o[j].index = j
}
func (o *openSet) Push(x any) {
	item := x.(*openItem)
	item.index = len(*o)
	*o = append(*o, item)
}
func (o *openSet) Pop() any {
	old := *o
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*o = old[:n-1]
	return item
}
