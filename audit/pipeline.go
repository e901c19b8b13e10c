package audit

import (
	"context"
	"fmt"
	"math"

	"github.com/MrEthical07/goRefMon/auditpol"
	"github.com/MrEthical07/goRefMon/ident"
)

// AuditsDiscardedParams is the record reporting count dropped records. The
// count saturates at math.MaxUint32.
func AuditsDiscardedParams(count uint64) *Params {
	if count > math.MaxUint32 {
		count = math.MaxUint32
	}
	return &Params{
		Category: auditpol.CategorySystem,
		AuditID:  AuditIDAuditsDiscarded,
		Type:     EventSuccess,
		Params: []Param{
			SIDParam{SID: ident.LocalSystemSID},
			String("Security"),
			Ulong(uint32(count)),
		},
	}
}

// Pipeline marshals records, admits them to the queue and escalates
// records that cannot be guaranteed.
type Pipeline struct {
	marshaller *Marshaller
	queue      *Queue
	settings   *Settings
	escalator  *Escalator
}

// NewPipeline wires the components and installs the audits-discarded
// report on q. A report that cannot be built is escalated.
func NewPipeline(m *Marshaller, q *Queue, s *Settings, e *Escalator) *Pipeline {
	p := &Pipeline{
		marshaller: m,
		queue:      q,
		settings:   s,
		escalator:  e,
	}
	q.SetReport(p.discardReport, func(err error) {
		e.Fail(context.Background(), fmt.Errorf("audits-discarded record: %w", err))
	})
	return p
}

func (p *Pipeline) discardReport(count uint64) (*WorkItem, error) {
	return p.marshaller.Marshal(AuditsDiscardedParams(count))
}

// Queue returns the underlying queue.
func (p *Pipeline) Queue() *Queue { return p.queue }

// Log marshals params and offers the record to the queue. Under
// crash-on-audit-fail the record is forced, and a record that still cannot
// be queued, or cannot be built, is escalated. A marshalling failure is
// also returned.
func (p *Pipeline) Log(ctx context.Context, params *Params) (Admission, error) {
	item, err := p.marshaller.Marshal(params)
	if err != nil {
		p.escalator.Fail(ctx, err)
		return Discarded, err
	}

	forced := p.settings.CrashOnAuditFail()
	adm := p.queue.Enqueue(item, forced)
	if adm != Admitted {
		item.Discard()
		if forced {
			p.escalator.Fail(ctx, fmt.Errorf("%w: %s", ErrNotQueued, adm))
		}
	}
	return adm, nil
}

// LogDeletedLogon queues the forced notification that a logon session is
// gone.
func (p *Pipeline) LogDeletedLogon(_ context.Context, authID ident.LUID) Admission {
	item := NewDeletedLogonItem(authID)
	adm := p.queue.Enqueue(item, true)
	if adm != Admitted {
		item.Discard()
	}
	return adm
}
