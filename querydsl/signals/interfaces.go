package signals

import (
	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/disposable"
)

type Observer[E any] func(E) error

type Signal[E any] interface {
	Attach(observer Observer[E], observerID ...any) disposable.Disposable
	Detach(observer Observer[E], observerID ...any)
	Notify(event E) error
}
