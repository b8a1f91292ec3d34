package registry

import (
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/crystal-mush/hubportal/pkg/gamedb"
)

// checkInvariants asserts every link is symmetric and points at an
// existing portal.
func checkInvariants(t *rapid.T, r *Registry) {
	for _, p := range r.Portals() {
		if !p.Linked() {
			continue
		}
		partner, ok := r.Get(p.LinkID)
		if !ok {
			t.Fatalf("portal %q links to missing %q", p.ID, p.LinkID)
		}
		if partner.LinkID != p.ID {
			t.Fatalf("portal %q links to %q but %q links to %q", p.ID, p.LinkID, partner.ID, partner.LinkID)
		}
	}
}

// TestProperty_LinksStaySymmetric drives random operation sequences and
// checks the link invariants after each step.
func TestProperty_LinksStaySymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := New()
		id := rapid.SampledFrom([]string{"a", "b", "c", "d", "e"})
		steps := rapid.IntRange(1, 60).Draw(t, "steps")

		for i := 0; i < steps; i++ {
			op := rapid.IntRange(0, 4).Draw(t, fmt.Sprintf("op-%d", i))
			x := id.Draw(t, fmt.Sprintf("x-%d", i))
			y := id.Draw(t, fmt.Sprintf("y-%d", i))

			switch op {
			case 0:
				r.Create(x, overworld, gamedb.BlockPos{}, gamedb.White, 1)
			case 1:
				before, _ := r.Get(x)
				err := r.Link(x, y)
				if x == y && !errors.Is(err, ErrSameID) {
					t.Fatalf("link(%q,%q) = %v, want ErrSameID", x, y, err)
				}
				if err == nil {
					if before.Linked() {
						t.Fatalf("link succeeded on already linked %q", x)
					}
					a, _ := r.Get(x)
					b, _ := r.Get(y)
					if a.LinkID != y || b.LinkID != x {
						t.Fatalf("link(%q,%q) not symmetric", x, y)
					}
				}
			case 2:
				if err := r.Unlink(x, y); err == nil {
					a, _ := r.Get(x)
					b, _ := r.Get(y)
					if a.Linked() || b.Linked() {
						t.Fatalf("unlink(%q,%q) left a link behind", x, y)
					}
				}
			case 3:
				before, existed := r.Get(x)
				err := r.Delete(x)
				if existed && before.Linked() {
					if !errors.Is(err, ErrStillLinked) {
						t.Fatalf("delete of linked %q = %v", x, err)
					}
					if _, ok := r.Get(x); !ok {
						t.Fatalf("delete of linked %q removed it", x)
					}
				}
			case 4:
				before, existed := r.Get(x)
				if err := r.Rename(x, y); err == nil {
					if !existed {
						t.Fatalf("rename of missing %q succeeded", x)
					}
					after, ok := r.Get(y)
					if !ok || after.Pos != before.Pos || after.Color != before.Color || after.Scale != before.Scale {
						t.Fatalf("rename %q->%q lost portal data", x, y)
					}
				}
			}
			checkInvariants(t, r)
		}
	})
}
