package disposable

import "sync"

// Disposable releases a subscription or any other scoped resource.
type Disposable interface {
	Dispose()
}

type disposableImp struct {
	once     sync.Once
	callback func()
}

func NewDisposable(callback func()) Disposable {
	return &disposableImp{callback: callback}
}

// Dispose runs the callback at most once.
func (d *disposableImp) Dispose() {
	d.once.Do(d.callback)
}
