package utils

import (
	"sync"
)

// ChannelForwarder fans the values of one channel out to any number of receivers
type ChannelForwarder[T any] struct {
	original chan T

	channels []chan T
	isClosed bool

	buffer int
	lock   sync.Mutex
}

func ForwardChannel[T any](orig chan T, buffer int) *ChannelForwarder[T] {
	cf := &ChannelForwarder[T]{
		original: orig,
		buffer:   buffer,
	}

	go func() {
		for {
			event, ok := <-orig

			cf.lock.Lock()
			if !ok {
				for _, cha := range cf.channels {
					close(cha)
				}
				cf.channels = nil
				cf.isClosed = true

				cf.lock.Unlock()
				return
			}

			for _, forwardChannel := range cf.channels {
				select {
				case forwardChannel <- event:
				default:
					// slow receivers miss values instead of blocking everyone else
				}
			}
			cf.lock.Unlock()
		}
	}()

	return cf
}

func (c *ChannelForwarder[T]) Remove(recv <-chan T) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for i, cha := range c.channels {
		if recv == cha {
			close(cha)
			c.channels[i] = c.channels[len(c.channels)-1]
			c.channels = c.channels[:len(c.channels)-1]
			return
		}
	}
}

func (c *ChannelForwarder[T]) Get() <-chan T {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.isClosed {
		return nil
	}

	newChan := make(chan T, c.buffer)
	c.channels = append(c.channels, newChan)
	return newChan
}

func (c *ChannelForwarder[T]) Send(val T) {
	c.original <- val
}

func (c *ChannelForwarder[T]) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.isClosed {
		c.isClosed = true
		close(c.original)
	}
}
