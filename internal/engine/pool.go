package engine

import (
	"sync"
)

// pool limita cuántas operaciones de I/O corren a la vez.
// Quien espera un hueco no ocupa ninguno, por eso se puede anidar bajo
// otro reparto (buckets) sin bloqueos mutuos.
type pool struct {
	sem chan struct{}
}

func newPool(size int) *pool {
	return &pool{sem: make(chan struct{}, size)}
}

// each ejecuta fn(i) para i en [0, n) y espera a que terminen todos.
func (p *pool) each(n int, fn func(i int)) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		p.sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer func() {
				<-p.sem
				wg.Done()
			}()
			fn(i)
		}(i)
	}
	wg.Wait()
}

// fanOut reparte jobs entre `workers` goroutines. Cada worker recibe su índice
// para que acumule en su propio arena.
func fanOut[T any](workers int, jobs []T, fn func(worker int, job T)) {
	if len(jobs) == 0 {
		return
	}
	workers = max(1, min(workers, len(jobs)))

	ch := make(chan T, len(jobs))
	for _, j := range jobs {
		ch <- j
	}
	close(ch)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for j := range ch {
				fn(w, j)
			}
		}(w)
	}
	wg.Wait()
}
