package graph

// Subscribe returns a channel that receives an empty struct every time
// collection/id is touched by a committed write (PutDoc, PutNode, or an
// edge write naming id as either endpoint), plus a matching "*" wildcard
// subscription fired on every write to collection regardless of id. Writes
// committed through a Transaction do not fire notifications. This
// is the reactive-subscription channel plumbing SPEC_FULL.md's design note
// adds beyond spec.md's distillation: the spec places UI/reactive
// observation of document changes out of scope, but the channel a
// collaborator attaches to is CORE-owned infrastructure, grounded in the
// plain-channel event-notification pattern the pack's cluster membership
// package already uses for upstream consumers.
//
// The channel is buffered (capacity 1) and notification is
// best-effort: a slow or absent consumer never blocks a write. Callers
// that need every notification must drain promptly; a missed notification
// still leaves the underlying data correct, since this channel is advisory
// signaling only, never a source of truth.
func (g *Graph) Subscribe(collection, id string) <-chan struct{} {
	return g.subscribe(collection + ":" + id)
}

// SubscribeAll returns a channel fired on every committed write to
// collection, regardless of id.
func (g *Graph) SubscribeAll(collection string) <-chan struct{} {
	return g.subscribe(collection + ":*")
}

func (g *Graph) subscribe(topic string) <-chan struct{} {
	ch := make(chan struct{}, 1)
	g.subMu.Lock()
	g.subs[topic] = append(g.subs[topic], ch)
	g.subMu.Unlock()
	return ch
}

// Unsubscribe removes ch from collection/id's waiter list. Safe to call
// more than once or with a channel never registered.
func (g *Graph) Unsubscribe(collection, id string, ch <-chan struct{}) {
	g.unsubscribe(collection+":"+id, ch)
}

// UnsubscribeAll removes ch from collection's wildcard waiter list.
func (g *Graph) UnsubscribeAll(collection string, ch <-chan struct{}) {
	g.unsubscribe(collection+":*", ch)
}

func (g *Graph) unsubscribe(topic string, ch <-chan struct{}) {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	waiters := g.subs[topic]
	for i, c := range waiters {
		if c == ch {
			g.subs[topic] = append(waiters[:i], waiters[i+1:]...)
			return
		}
	}
}

// notify fires both the exact-id and wildcard subscriptions for
// collection after a commit touching id completes.
func (g *Graph) notify(collection, id string) {
	g.subMu.Lock()
	defer g.subMu.Unlock()

	for _, topic := range [2]string{collection + ":" + id, collection + ":*"} {
		for _, ch := range g.subs[topic] {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}
