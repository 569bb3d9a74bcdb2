// Package executor provides a bounded worker pool that drains a FIFO queue.
//
// Each preparser domain (parse, local fetch, network fetch, thumbnail) owns
// one Executor. Tasks still in the queue can be removed without ever
// running; running tasks are cancelled through their context and must
// return on their own.
//
//	e := executor.New("parse", 4)
//	defer e.Close()
//
//	t := executor.NewTask(ctx, func(ctx context.Context) { work(ctx) }, nil)
//	if err := e.Submit(t); err != nil {
//	    return err
//	}
//	e.Cancel(t)
package executor
