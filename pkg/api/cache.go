package api

import (
	"context"
	"errors"
	"time"
)

var (
	errCacheDisabled = errors.New("cache disabled")
	errCacheStopped  = errors.New("cache stopped")
	errNoRender      = errors.New("no render func")
)

// imageRequest is the only message the cache goroutine accepts.
type imageRequest struct {
	ctx    context.Context
	key    string
	render func(context.Context) ([]byte, error)
	reply  chan imageResponse
}

type imageResponse struct {
	data []byte
	err  error
}

type imageEntry struct {
	data    []byte
	expires time.Time
}

// ResponseCache keeps rendered share images so repeated card opens do not
// re-encode the same PNG. One goroutine owns the map; callers talk to it
// over a channel.
type ResponseCache struct {
	ttl        time.Duration
	maxEntries int
	requests   chan imageRequest
	quit       chan struct{}
	now        func() time.Time
}

// NewResponseCache starts the owning goroutine. A non-positive ttl
// returns nil, which behaves as a disabled cache.
func NewResponseCache(ttl time.Duration, maxEntries int) *ResponseCache {
	if ttl <= 0 {
		return nil
	}
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	c := &ResponseCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		requests:   make(chan imageRequest),
		quit:       make(chan struct{}),
		now:        time.Now,
	}
	go c.loop()
	return c
}

// Close stops the goroutine. Safe to call more than once.
func (c *ResponseCache) Close() {
	if c == nil {
		return
	}
	select {
	case <-c.quit:
		return
	default:
	}
	close(c.quit)
}

// Get returns the bytes cached under key, calling render on a miss.
// The returned slice is the caller's own copy.
func (c *ResponseCache) Get(ctx context.Context, key string, render func(context.Context) ([]byte, error)) ([]byte, error) {
	if c == nil {
		return nil, errCacheDisabled
	}
	select {
	case <-c.quit:
		return nil, errCacheStopped
	default:
	}
	req := imageRequest{ctx: ctx, key: key, render: render, reply: make(chan imageResponse, 1)}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.quit:
		return nil, errCacheStopped
	case c.requests <- req:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.quit:
		return nil, errCacheStopped
	case resp := <-req.reply:
		if resp.err != nil || resp.data == nil {
			return nil, resp.err
		}
		return append([]byte(nil), resp.data...), nil
	}
}

func (c *ResponseCache) loop() {
	store := make(map[string]imageEntry)
	for {
		select {
		case <-c.quit:
			return
		case req := <-c.requests:
			now := c.now()
			if e, ok := store[req.key]; ok && now.Before(e.expires) {
				req.reply <- imageResponse{data: e.data}
				continue
			}
			if req.render == nil {
				req.reply <- imageResponse{err: errNoRender}
				continue
			}
			data, err := req.render(req.ctx)
			if err != nil {
				delete(store, req.key)
				req.reply <- imageResponse{err: err}
				continue
			}
			if len(store) >= c.maxEntries {
				evictExpired(store, now)
			}
			if len(store) < c.maxEntries {
				store[req.key] = imageEntry{data: append([]byte(nil), data...), expires: now.Add(c.ttl)}
			}
			req.reply <- imageResponse{data: data}
		}
	}
}

// evictExpired drops stale entries; when none are stale the map is reset.
// Images are cheap to rebuild, so a full reset beats tracking recency.
func evictExpired(store map[string]imageEntry, now time.Time) {
	n := len(store)
	for k, e := range store {
		if !now.Before(e.expires) {
			delete(store, k)
		}
	}
	if len(store) == n {
		clear(store)
	}
}
