package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/paintcache/consumer"
	"github.com/IvanBrykalov/paintcache/payload"
	"github.com/IvanBrykalov/paintcache/producer"
)

// blob returns a deterministic payload for (kind, id) of the given size.
func blob(kind payload.Kind, id payload.ID, size int) []byte {
	seed := []byte(fmt.Sprintf("%s:%d;", kind, id))
	return bytes.Repeat(seed, size/len(seed)+1)[:size]
}

// pair is a producer and a consumer joined by an in-memory buffer.
type pair struct {
	rec *Recorder
	pc  *producer.Cache
	cc  *consumer.Cache[[]byte, []byte]
	rep *Replayer
}

func newPair(t *testing.T, budget int64, onDraw func(payload.Kind, payload.ID, []byte)) *pair {
	t.Helper()
	buf := &bytes.Buffer{}
	pc := producer.New(producer.Options{MaxBytes: budget})
	cc := consumer.New[[]byte, []byte](consumer.Options{})
	return &pair{
		rec: NewRecorder(pc, NewEncoder(buf, EncoderOptions{})),
		pc:  pc,
		cc:  cc,
		rep: NewReplayer(NewDecoder(buf, DecoderOptions{}), cc, ReplayerOptions{OnDraw: onDraw}),
	}
}

// sync flushes the producer and replays everything written so far.
func (p *pair) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, p.rec.Flush())
	require.NoError(t, p.rep.Run(context.Background()))
}

// assertSameMembership checks the cross-cache invariant.
func (p *pair) assertSameMembership(t *testing.T) {
	t.Helper()
	for k := payload.Kind(0); k < payload.NumKinds; k++ {
		resident := p.pc.Resident(k)
		require.Equal(t, len(resident), p.cc.Len(k), "kind %s size", k)
		for _, id := range resident {
			require.True(t, p.cc.Has(k, id), "consumer lacks %s/%d", k, id)
		}
	}
}

func TestCodec_FramesSurviveTransport(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, EncoderOptions{})

	big := blob(payload.Path, 7, 64<<10) // compressible, goes through s2
	small := []byte{1, 2, 3}
	frames := []Frame{
		{Op: OpPut, Kind: payload.Path, ID: 7, Data: big},
		{Op: OpPut, Kind: payload.TextBlob, ID: 1, Data: small},
		{Op: OpUse, Kind: payload.Path, ID: 7},
		{Op: OpPurge, Kind: payload.TextBlob, IDs: []payload.ID{1, 0xffffffff}},
		{Op: OpPurgeAll},
	}
	for i := range frames {
		require.NoError(t, enc.Encode(&frames[i]))
	}
	require.NoError(t, enc.Flush())
	assert.Less(t, enc.Written(), int64(len(big)), "large payload should be compressed")
	assert.Equal(t, int64(buf.Len()), enc.Written())

	dec := NewDecoder(&buf, DecoderOptions{})
	var got Frame
	for i, want := range frames {
		require.NoError(t, dec.Decode(&got), "frame %d", i)
		assert.Equal(t, want.Op, got.Op)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.ID, got.ID)
		if want.Data != nil {
			assert.Equal(t, want.Data, got.Data)
		}
		if want.IDs != nil {
			assert.Equal(t, want.IDs, got.IDs)
		}
	}
	require.ErrorIs(t, dec.Decode(&got), io.EOF)
}

func TestCodec_EmptyPurgeWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, EncoderOptions{})
	require.NoError(t, enc.Purge(payload.Path, nil))
	require.NoError(t, enc.Flush())
	assert.Zero(t, buf.Len())
}

func TestDecoder_RejectsBadInput(t *testing.T) {
	encoded := func(fn func(e *Encoder) error) []byte {
		var buf bytes.Buffer
		e := NewEncoder(&buf, EncoderOptions{CompressThreshold: -1})
		require.NoError(t, fn(e))
		require.NoError(t, e.Flush())
		return buf.Bytes()
	}

	t.Run("purge list over limit", func(t *testing.T) {
		b := encoded(func(e *Encoder) error { return e.Purge(payload.Path, []payload.ID{1, 2, 3}) })
		dec := NewDecoder(bytes.NewReader(b), DecoderOptions{MaxPurgeIDs: 2})
		require.ErrorIs(t, dec.Decode(&Frame{}), ErrFrameTooLarge)
	})

	t.Run("payload over limit", func(t *testing.T) {
		b := encoded(func(e *Encoder) error { return e.Put(payload.Path, 1, make([]byte, 100)) })
		dec := NewDecoder(bytes.NewReader(b), DecoderOptions{MaxPayloadBytes: 99})
		require.ErrorIs(t, dec.Decode(&Frame{}), ErrFrameTooLarge)
	})

	t.Run("truncated frame", func(t *testing.T) {
		b := encoded(func(e *Encoder) error { return e.Put(payload.TextBlob, 1, []byte("abcdef")) })
		dec := NewDecoder(bytes.NewReader(b[:len(b)-2]), DecoderOptions{})
		require.ErrorIs(t, dec.Decode(&Frame{}), io.ErrUnexpectedEOF)
	})

	t.Run("unknown op", func(t *testing.T) {
		dec := NewDecoder(bytes.NewReader([]byte{0x7f, 0, 0}), DecoderOptions{})
		require.ErrorIs(t, dec.Decode(&Frame{}), ErrUnknownOp)
	})

	t.Run("unknown kind", func(t *testing.T) {
		dec := NewDecoder(bytes.NewReader([]byte{byte(OpUse), 0, 9, 1, 0, 0, 0}), DecoderOptions{})
		require.ErrorIs(t, dec.Decode(&Frame{}), ErrUnknownOp)
	})

	t.Run("corrupt compressed payload", func(t *testing.T) {
		b := []byte{byte(OpPut), FlagS2, byte(payload.Path), 1, 0, 0, 0, 4, 0xff, 0xff, 0xff, 0xff}
		dec := NewDecoder(bytes.NewReader(b), DecoderOptions{})
		require.ErrorIs(t, dec.Decode(&Frame{}), ErrCorruptPayload)
	})
}

// budget = 1024: the second 1024-byte path pushes the first one out on both sides.
func TestRecorder_ReconcileReachesConsumer(t *testing.T) {
	p := newPair(t, 1024, nil)

	hit, err := p.rec.Draw(payload.Path, 1, make([]byte, 1024))
	require.NoError(t, err)
	assert.False(t, hit)
	_, err = p.rec.Draw(payload.Path, 2, make([]byte, 1024))
	require.NoError(t, err)

	n, err := p.rec.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1024), p.pc.BytesUsed())

	p.sync(t)
	assert.False(t, p.cc.Has(payload.Path, 1))
	assert.True(t, p.cc.Has(payload.Path, 2))
	p.assertSameMembership(t)

	hit, err = p.rec.Draw(payload.Path, 2, nil)
	require.NoError(t, err)
	assert.True(t, hit, "path/2 is still resident")

	assert.Equal(t, RecorderStats{Puts: 2, Uses: 1, Purged: 1}, p.rec.Stats())
}

func TestRecorder_InvalidateReachesConsumer(t *testing.T) {
	p := newPair(t, 1<<20, nil)

	_, err := p.rec.Draw(payload.Path, 1, []byte("p"))
	require.NoError(t, err)
	_, err = p.rec.Draw(payload.TextBlob, 1, []byte("t"))
	require.NoError(t, err)

	wrote, err := p.rec.Invalidate()
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = p.rec.Invalidate()
	require.NoError(t, err)
	assert.False(t, wrote, "nothing left to invalidate")

	p.sync(t)
	assert.True(t, p.cc.Empty())
}

func TestReplayer_MissingPayload(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, EncoderOptions{})
	require.NoError(t, enc.Use(payload.TextBlob, 3))
	require.NoError(t, enc.Flush())

	cc := consumer.New[[]byte, []byte](consumer.Options{})
	r := NewReplayer(NewDecoder(&buf, DecoderOptions{}), cc, ReplayerOptions{})
	require.ErrorIs(t, r.Next(), ErrMissingPayload)
}

func TestReplayer_RunHonoursContext(t *testing.T) {
	cc := consumer.New[[]byte, []byte](consumer.Options{})
	r := NewReplayer(NewDecoder(bytes.NewReader(nil), DecoderOptions{}), cc, ReplayerOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, r.Run(ctx), context.Canceled)
}

// For any interleaving of draws, reconciles and invalidations, replaying the
// stream leaves the consumer holding exactly what the producer believes it holds.
func TestStream_CrossCacheConsistency(t *testing.T) {
	for _, seed := range []int64{1, 2, 3, 4} {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			draws := 0
			p := newPair(t, 8<<10, func(kind payload.Kind, id payload.ID, data []byte) {
				draws++
				require.Equal(t, blob(kind, id, len(data)), data)
			})
			r := rand.New(rand.NewSource(seed))

			issued := 0
			for step := 0; step < 3000; step++ {
				switch x := r.Intn(100); {
				case x < 85:
					kind := payload.Kind(r.Intn(payload.NumKinds))
					id := payload.ID(r.Intn(64))
					_, err := p.rec.Draw(kind, id, blob(kind, id, 64+r.Intn(2048)))
					require.NoError(t, err)
					issued++
				case x < 99:
					_, err := p.rec.Reconcile()
					require.NoError(t, err)
				default:
					_, err := p.rec.Invalidate()
					require.NoError(t, err)
				}
				if step%17 == 0 {
					p.sync(t)
					p.assertSameMembership(t)
				}
			}
			p.sync(t)
			p.assertSameMembership(t)
			assert.Equal(t, issued, draws)
		})
	}
}

// Producer and consumer run on separate goroutines joined by an io.Pipe.
func TestStream_PipeBetweenGoroutines(t *testing.T) {
	pr, pw := io.Pipe()

	pc := producer.New(producer.Options{MaxBytes: 16 << 10})
	cc := consumer.New[[]byte, []byte](consumer.Options{})

	const draws = 5000
	var drawn int
	rep := NewReplayer(NewDecoder(pr, DecoderOptions{}), cc, ReplayerOptions{
		OnDraw: func(kind payload.Kind, id payload.ID, data []byte) {
			drawn++
			if !bytes.Equal(data, blob(kind, id, len(data))) {
				t.Errorf("payload mismatch for %s/%d", kind, id)
			}
		},
	})

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		fail := func(err error) error {
			_ = pw.CloseWithError(err)
			return err
		}
		rec := NewRecorder(pc, NewEncoder(pw, EncoderOptions{}))
		r := rand.New(rand.NewSource(7))
		for i := 0; i < draws; i++ {
			kind := payload.Kind(r.Intn(payload.NumKinds))
			id := payload.ID(r.Intn(128))
			if _, err := rec.Draw(kind, id, blob(kind, id, 256)); err != nil {
				return fail(err)
			}
			if i%32 == 31 {
				if _, err := rec.Reconcile(); err != nil {
					return fail(err)
				}
			}
		}
		if _, err := rec.Reconcile(); err != nil {
			return fail(err)
		}
		if err := rec.Flush(); err != nil {
			return fail(err)
		}
		return pw.Close()
	})
	g.Go(func() error {
		err := rep.Run(ctx)
		_ = pr.CloseWithError(err)
		return err
	})
	require.NoError(t, g.Wait())

	assert.Equal(t, draws, drawn)
	assert.LessOrEqual(t, pc.BytesUsed(), pc.MaxBytes())
	for k := payload.Kind(0); k < payload.NumKinds; k++ {
		resident := pc.Resident(k)
		assert.Equal(t, len(resident), cc.Len(k))
		for _, id := range resident {
			assert.True(t, cc.Has(k, id))
		}
	}
}

// One Reconcile that evicts more ids than a single purge frame may carry must
// still reach the consumer intact.
func TestRecorder_ReconcileSplitsLargePurge(t *testing.T) {
	p := newPair(t, 1, nil)

	const draws = consumer.DefaultMaxPurgeIDs + 4464
	for i := 0; i < draws; i++ {
		_, err := p.rec.Draw(payload.Path, payload.ID(i), []byte{1})
		require.NoError(t, err)
	}
	n, err := p.rec.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, draws-1, n)

	p.sync(t)
	assert.Equal(t, 1, p.cc.Len(payload.Path))
	p.assertSameMembership(t)
}

func TestEncoder_PurgeSplitsByLimit(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, EncoderOptions{MaxPurgeIDs: 3})

	ids := []payload.ID{1, 2, 3, 4, 5, 6, 7}
	require.NoError(t, enc.Purge(payload.TextBlob, ids))
	require.NoError(t, enc.Flush())

	dec := NewDecoder(&buf, DecoderOptions{MaxPurgeIDs: 3})
	var (
		f    Frame
		got  []payload.ID
		sent int
	)
	for {
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		require.Equal(t, OpPurge, f.Op)
		require.LessOrEqual(t, len(f.IDs), 3)
		got = append(got, f.IDs...)
		sent++
	}
	assert.Equal(t, 3, sent)
	assert.Equal(t, ids, got)
}

func TestRecorder_DrawUnknownKindWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, EncoderOptions{})
	pc := producer.New(producer.Options{MaxBytes: 64})
	rec := NewRecorder(pc, enc)

	_, err := rec.Draw(payload.Kind(5), 1, []byte("x"))
	require.ErrorIs(t, err, ErrUnknownOp)
	require.NoError(t, rec.Flush())
	assert.Zero(t, enc.Written())
	assert.Zero(t, buf.Len())
	assert.Zero(t, pc.Len())
}

var errBrokenPipe = errors.New("broken pipe")

// switchWriter forwards to w until fail is set.
type switchWriter struct {
	w    io.Writer
	fail bool
}

func (s *switchWriter) Write(b []byte) (int, error) {
	if s.fail {
		return 0, errBrokenPipe
	}
	return s.w.Write(b)
}

// A failed purge frame leaves later kinds evicted on the producer but never
// sent; the caller has to invalidate both sides.
func TestRecorder_ReconcileWriteFailure(t *testing.T) {
	sw := &switchWriter{w: io.Discard}
	pc := producer.New(producer.Options{MaxBytes: 1})
	rec := NewRecorder(pc, NewEncoder(sw, EncoderOptions{}))

	for i := 0; i < 2000; i++ {
		_, err := rec.Draw(payload.Path, payload.ID(i), []byte{1})
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		_, err := rec.Draw(payload.TextBlob, payload.ID(i), []byte{1})
		require.NoError(t, err)
	}
	require.NoError(t, rec.Flush())

	sw.fail = true
	_, err := rec.Reconcile()
	require.ErrorIs(t, err, errBrokenPipe)
	assert.Equal(t, []payload.ID{9}, pc.Resident(payload.TextBlob), "text blobs are evicted before any frame is written")
	assert.Zero(t, rec.Stats().Purged)
}
