package engine

import (
	"container/list"

	"asyncsql/internal/domain/model"
)

// taskQueue keeps tasks in submission order with an id index for fetches.
// It is not safe for concurrent use; Engine.mu guards it.
type taskQueue struct {
	order *list.List
	byID  map[int64]*list.Element
}

func newTaskQueue() *taskQueue {
	return &taskQueue{order: list.New(), byID: make(map[int64]*list.Element)}
}

func (q *taskQueue) push(t *model.Task) {
	q.byID[t.ID] = q.order.PushBack(t)
}

func (q *taskQueue) get(id int64) *model.Task {
	el, ok := q.byID[id]
	if !ok {
		return nil
	}
	return el.Value.(*model.Task)
}

func (q *taskQueue) remove(id int64) *model.Task {
	el, ok := q.byID[id]
	if !ok {
		return nil
	}
	delete(q.byID, id)
	return q.order.Remove(el).(*model.Task)
}

func (q *taskQueue) len() int { return q.order.Len() }

// each walks head to tail until fn returns false.
func (q *taskQueue) each(fn func(t *model.Task) bool) {
	for el := q.order.Front(); el != nil; {
		next := el.Next()
		if !fn(el.Value.(*model.Task)) {
			return
		}
		el = next
	}
}

func (q *taskQueue) counts() (pending, running, done int) {
	q.each(func(t *model.Task) bool {
		switch t.State {
		case model.TaskStatePending:
			pending++
		case model.TaskStateRunning:
			running++
		case model.TaskStateDone:
			done++
		}
		return true
	})
	return pending, running, done
}
