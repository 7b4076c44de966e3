package connman

import (
	"sort"

	"github.com/yllada/connman-indicator/common"
)

// Arrangement is a technology's member list split for display.
type Arrangement struct {
	Direct   []*Service
	Overflow []*Service
	// Expanded is whether the technology's section is shown open.
	Expanded bool
}

// Ordering arranges the member services of one technology. Input is in the
// daemon's order.
type Ordering interface {
	Arrange(services []*Service) Arrangement
}

// OrderingFunc adapts a plain function to Ordering.
type OrderingFunc func(services []*Service) Arrangement

func (f OrderingFunc) Arrange(services []*Service) Arrangement { return f(services) }

// OrderingFor returns the display strategy for kind.
func OrderingFor(kind Kind, visible int) Ordering {
	if kind == KindWifi {
		return &signalOrdering{visible: visible}
	}
	return OrderingFunc(daemonOrder)
}

// daemonOrder keeps the daemon's order and opens the section only when
// there is more than one line to choose from.
func daemonOrder(services []*Service) Arrangement {
	return Arrangement{
		Direct:   append([]*Service(nil), services...),
		Expanded: len(services) > 1,
	}
}

// signalOrdering puts online services first, then services part-way through
// connecting, then the rest; strongest signal first within each rank. The
// first visible entries are shown directly.
type signalOrdering struct {
	visible int
}

func (o *signalOrdering) Arrange(services []*Service) Arrangement {
	sorted := append([]*Service(nil), services...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := displayRank(sorted[i]), displayRank(sorted[j])
		if ri != rj {
			return ri < rj
		}
		si, _ := sorted[i].Strength()
		sj, _ := sorted[j].Strength()
		return si > sj
	})

	visible := o.visible
	if visible < 1 {
		visible = common.VisibleNetworks
	}
	if len(sorted) <= visible {
		return Arrangement{Direct: sorted, Expanded: true}
	}
	return Arrangement{
		Direct:   sorted[:visible:visible],
		Overflow: sorted[visible:],
		Expanded: true,
	}
}

// displayRank orders online, then acquiring, then everything else. The
// middle rank is a product choice: a network being joined stays near the
// top even when idle networks have a stronger signal. Ready services rank
// as acquiring until the daemon reports them online.
func displayRank(s *Service) int {
	state, _ := s.State()
	switch {
	case state == StateOnline:
		return 0
	case state.Acquiring():
		return 1
	default:
		return 2
	}
}
