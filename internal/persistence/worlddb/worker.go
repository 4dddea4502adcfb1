package worlddb

import (
	"context"
	"sync/atomic"
)

type counters struct {
	applied    atomic.Uint64
	writeFail  atomic.Uint64
	commits    atomic.Uint64
	commitFail atomic.Uint64
}

// worker is the only goroutine that applies queued commands. Failed writes are
// counted and otherwise ignored: producers are never told, and nothing is
// retried. The failed statement simply has no effect in the open transaction.
type worker struct {
	q    *Queue
	st   *store
	ctr  *counters
	done chan struct{}
}

func startWorker(q *Queue, st *store, ctr *counters) *worker {
	w := &worker{q: q, st: st, ctr: ctr, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		w.loop()
	}()
	return w
}

func (w *worker) loop() {
	ctx := context.Background()
	for {
		var err error
		switch c := w.q.Dequeue().(type) {
		case InsertBlock:
			err = w.st.putBlock(ctx, c)
		case InsertLight:
			err = w.st.putLight(ctx, c)
		case SetKey:
			err = w.st.putKey(ctx, c)
		case Commit:
			w.ctr.commits.Add(1)
			if cerr := w.st.commit(ctx); cerr != nil {
				w.ctr.commitFail.Add(1)
			}
		case Exit:
			return
		}
		if err != nil {
			w.ctr.writeFail.Add(1)
		}
		w.ctr.applied.Add(1)
	}
}

// stop queues Exit behind everything already queued and waits for the worker
// to apply it all.
func (w *worker) stop() {
	w.q.Enqueue(Exit{}, 0)
	<-w.done
}
