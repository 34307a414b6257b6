package runner

import (
	"context"
	"sync"
)

// Pool runs functions with at most n of them in flight at once.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{sem: make(chan struct{}, n)}
}

// Go blocks until a slot is free, then runs fn in its own goroutine.
func (p *Pool) Go(fn func()) {
	p.wg.Add(1)
	p.sem <- struct{}{}
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		fn()
	}()
}

// GoContext is Go, except that it gives up once ctx ends. fn is not run
// when it returns an error.
func (p *Pool) GoContext(ctx context.Context, fn func()) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		<-p.sem
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		fn()
	}()
	return nil
}

// Wait blocks until every submitted function has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Size is the concurrency bound.
func (p *Pool) Size() int { return cap(p.sem) }
