package utils

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
)

type jsonBufferPool struct {
	pool sync.Pool
}

func (p *jsonBufferPool) Get() *bytes.Buffer {
	if buf := p.pool.Get(); buf != nil {
		return buf.(*bytes.Buffer)
	}
	return bytes.NewBuffer(make([]byte, 0, 1024))
}

func (p *jsonBufferPool) Put(buf *bytes.Buffer) {
	buf.Reset()
	if buf.Cap() < 16*1024 {
		p.pool.Put(buf)
	}
}

var jsonPool = &jsonBufferPool{}

func Marshal(data interface{}) ([]byte, error) {
	buf := jsonPool.Get()
	defer jsonPool.Put(buf)

	encoder := sonic.ConfigDefault.NewEncoder(buf)
	if err := encoder.Encode(data); err != nil {
		return nil, err
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

func Unmarshal[T any](data []byte, target *T) error {
	return sonic.ConfigDefault.Unmarshal(data, target)
}

// Remarshal converts a decoded interface{} value (as a cache backend returns
// it) into a concrete type by a marshal/unmarshal round trip.
func Remarshal[T any](value interface{}, target *T) error {
	if value == nil {
		return fmt.Errorf("value is nil")
	}

	if typed, ok := value.(T); ok {
		*target = typed
		return nil
	}

	data, err := sonic.ConfigDefault.Marshal(value)
	if err != nil {
		return err
	}

	return sonic.ConfigDefault.Unmarshal(data, target)
}
