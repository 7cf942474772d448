package broadcast_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dmitrymomot/zonecast/core/broadcast"
)

// Property: for a source announcing exactly n items, a pass reads at most n
// items and every item ends up counted exactly once.
func TestPublisherPassBoundedByHasNext(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("never reads past has-next", prop.ForAll(
		func(kinds []int) bool {
			steps := make([]any, len(kinds))
			for i, k := range kinds {
				switch k {
				case 0:
					steps[i] = fmt.Errorf("row %d unreadable", i)
				default:
					steps[i] = add(newRecord(fmt.Sprint(i)))
				}
			}
			src := newScriptedSource(steps...)
			pub, err := broadcast.NewPublisher(studentType, eventsOnly(src))
			if err != nil {
				return false
			}
			zone := newFakeZone("Z")

			res := pub.BroadcastZone(context.Background(), zone)

			_, next, before, after := src.counts()
			return next == len(kinds) &&
				before == after &&
				res.Succeeded+res.Failed == len(kinds) &&
				len(zone.Reported()) == res.Succeeded
		},
		gen.SliceOf(gen.IntRange(0, 3)),
	))

	properties.Property("a nil item ends the pass with exactly one failure", prop.ForAll(
		func(good, after int) bool {
			steps := make([]any, 0, good+after+1)
			for i := range good {
				steps = append(steps, change(newRecord(fmt.Sprint(i))))
			}
			steps = append(steps, nil)
			for i := range after {
				steps = append(steps, change(newRecord(fmt.Sprint("late", i))))
			}
			src := newScriptedSource(steps...)
			pub, err := broadcast.NewPublisher(studentType, eventsOnly(src))
			if err != nil {
				return false
			}

			res := pub.BroadcastZone(context.Background(), newFakeZone("Z"))

			_, next, _, _ := src.counts()
			return res.Failed == 1 && res.Succeeded == good && next == good+1
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

// Property: a gate that allows n requests submits exactly n queries per zone,
// however many ticks follow.
func TestSubscriberGateBoundsQueries(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("queries per zone equal min(allowed, ticks)", prop.ForAll(
		func(allowed, ticks, zoneCount int) bool {
			sub, err := broadcast.NewSubscriber(studentType, newTestRecord,
				broadcast.WithProtocolVersion("2.0"),
				broadcast.WithRequestGate(broadcast.MaxRequests(allowed)))
			if err != nil {
				return false
			}

			zones := make([]broadcast.Zone, zoneCount)
			fakes := make([]*fakeZone, zoneCount)
			for i := range zoneCount {
				fakes[i] = newFakeZone(fmt.Sprint("zone-", i))
				zones[i] = fakes[i]
			}

			for range ticks {
				sub.Request(context.Background(), zones)
			}

			want := min(allowed, ticks)
			for _, z := range fakes {
				if len(z.Queries()) != want {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 5),
		gen.IntRange(0, 20),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}

// Property: a response never carries a record that does not match the query.
func TestResponsesRespectQuery(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("written records all match", prop.ForAll(
		func(grades []int, threshold int) bool {
			records := make([]broadcast.Record, len(grades))
			matching := 0
			for i, g := range grades {
				records[i] = newRecord(fmt.Sprint(i), "Grade", fmt.Sprint(g))
				if g >= threshold {
					matching++
				}
			}
			pub, err := broadcast.NewPublisher(studentType, broadcast.SourceFuncs{
				Responses: func(context.Context, *broadcast.Query, broadcast.Zone) (broadcast.ResponseSource, error) {
					return broadcast.Records(broadcast.ModeOnce, broadcast.ActionAdd, records...), nil
				},
			})
			if err != nil {
				return false
			}

			q := broadcast.NewQuery(studentType, "2.0")
			if err := q.AddCondition("Grade", broadcast.OpGreaterOrEqual, fmt.Sprint(threshold)); err != nil {
				return false
			}
			out := &broadcast.RecordBuffer{}
			pub.OnRequest(context.Background(), out, q.Freeze(), newFakeZone("Z"), broadcast.MessageInfo{})

			for _, r := range out.Records() {
				if !q.Matches(r) {
					return false
				}
			}
			return out.Len() == matching
		},
		gen.SliceOf(gen.IntRange(1, 12)),
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}
