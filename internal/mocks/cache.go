package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type Cache struct {
	mock.Mock
}

func (c *Cache) Get(key string) (interface{}, bool, error) {
	args := c.Called(key)
	return args.Get(0), args.Bool(1), args.Error(2)
}

func (c *Cache) Set(key string, value interface{}, ttl time.Duration) error {
	args := c.Called(key, value, ttl)
	return args.Error(0)
}

func (c *Cache) Delete(key string) error {
	args := c.Called(key)
	return args.Error(0)
}

func (c *Cache) DeletePrefix(prefix string) error {
	args := c.Called(prefix)
	return args.Error(0)
}
