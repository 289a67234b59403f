// internal/app/enrollment/placement.go
package enrollment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dalemusser/coursehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Placement defaults.
const (
	DefaultMinGroups     = 10
	DefaultGroupCapacity = 30
)

// Group creation reasons, used for metrics and audit.
const (
	ReasonTopUp    = "topup"
	ReasonOverflow = "overflow"
	ReasonManual   = "manual"
)

// Placer assigns enrolled subscriptions to groups.
//
// Place must run under a per-course critical section: it reads the group
// list and member counts and then writes based on what it read.
type Placer struct {
	Groups   GroupPool
	Registry Registry

	MinGroups int // groups every course keeps; DefaultMinGroups when <= 0
	Capacity  int // members per group; DefaultGroupCapacity when <= 0

	now func() time.Time
}

// Placement is the outcome of one Place call.
type Placement struct {
	Group models.Group
	// Created lists the groups this call inserted, in creation order, with
	// the reason each was needed.
	Created []CreatedGroup
}

type CreatedGroup struct {
	Group  models.Group
	Reason string
}

func (p *Placer) minGroups() int {
	if p.MinGroups <= 0 {
		return DefaultMinGroups
	}
	return p.MinGroups
}

func (p *Placer) capacity() int {
	if p.Capacity <= 0 {
		return DefaultGroupCapacity
	}
	return p.Capacity
}

func (p *Placer) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

// GroupName is the display name of the n-th group of a course.
func GroupName(n int) string {
	return "Group " + strconv.Itoa(n)
}

// Place tops the course up to the minimum number of groups, picks the
// least-loaded group (lowest Number on ties), opens one new group when
// that one is full, and assigns sub to the chosen group.
func (p *Placer) Place(ctx context.Context, courseID primitive.ObjectID, sub models.Subscription) (Placement, error) {
	const op = "place"
	if courseID.IsZero() {
		return Placement{}, newError(op, ErrCourseNotFound, nil)
	}
	if sub.CourseID != courseID {
		return Placement{}, newError(op, ErrInvariantViolation,
			fmt.Errorf("subscription %s belongs to course %s, not %s", sub.ID.Hex(), sub.CourseID.Hex(), courseID.Hex()))
	}

	groups, err := p.Groups.ListByCourse(ctx, courseID)
	if err != nil {
		return Placement{}, fmt.Errorf("%s: list groups: %w", op, err)
	}

	var out Placement
	next := nextNumber(groups)
	for len(groups) < p.minGroups() {
		g, err := p.create(ctx, courseID, next)
		if err != nil {
			return Placement{}, fmt.Errorf("%s: top up: %w", op, err)
		}
		groups = append(groups, g)
		out.Created = append(out.Created, CreatedGroup{Group: g, Reason: ReasonTopUp})
		next++
	}

	counts, err := p.Registry.CountActiveByGroup(ctx, courseID)
	if err != nil {
		return Placement{}, fmt.Errorf("%s: count members: %w", op, err)
	}

	best := leastLoaded(groups, counts)
	if counts[best.ID] >= p.capacity() {
		g, err := p.create(ctx, courseID, next)
		if err != nil {
			return Placement{}, fmt.Errorf("%s: overflow: %w", op, err)
		}
		out.Created = append(out.Created, CreatedGroup{Group: g, Reason: ReasonOverflow})
		best = g
	}

	if err := p.Registry.AssignGroup(ctx, sub.ID, best); err != nil {
		return Placement{}, fmt.Errorf("%s: assign: %w", op, err)
	}

	// Re-derive the count after the write. More than capacity here means
	// another placement into this course ran outside the critical section.
	after, err := p.Registry.CountActiveByGroup(ctx, courseID)
	if err != nil {
		return Placement{}, fmt.Errorf("%s: recount members: %w", op, err)
	}
	if n := after[best.ID]; n > p.capacity() {
		return Placement{}, newError(op, ErrInvariantViolation,
			fmt.Errorf("group %s has %d members, capacity %d", best.Name, n, p.capacity()))
	}

	out.Group = best
	return out, nil
}

func (p *Placer) create(ctx context.Context, courseID primitive.ObjectID, n int) (models.Group, error) {
	return p.Groups.Create(ctx, models.Group{
		ID:        primitive.NewObjectID(),
		CourseID:  courseID,
		Number:    n,
		Name:      GroupName(n),
		CreatedAt: p.clock(),
	})
}

// nextNumber continues the 1-based sequence after the highest existing
// number, so a removed group never causes a name collision.
func nextNumber(groups []models.Group) int {
	hi := 0
	for _, g := range groups {
		if g.Number > hi {
			hi = g.Number
		}
	}
	return hi + 1
}

// leastLoaded returns the group with the fewest members; ties go to the
// lowest Number. groups must not be empty.
func leastLoaded(groups []models.Group, counts map[primitive.ObjectID]int) models.Group {
	best := groups[0]
	for _, g := range groups[1:] {
		c, bc := counts[g.ID], counts[best.ID]
		if c < bc || (c == bc && g.Number < best.Number) {
			best = g
		}
	}
	return best
}
