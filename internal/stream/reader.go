package stream

import (
	"bufio"
	"context"
	"io"
)

// Accumulate reads r line by line into a fresh Accumulator until a done chunk,
// a backend error, or the end of the stream. A read error other than EOF is
// treated like the connection dropping: the stream simply ends early.
//
// If ctx is done while reading, the partial state is discarded and ctx.Err()
// is returned. Callers should tie the reader's lifetime to ctx (for HTTP
// bodies, via the request context) so a blocked read is interrupted.
func Accumulate(ctx context.Context, r io.Reader, opts Options) (Result, error) {
	acc := NewAccumulator(opts)
	br := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		line, rerr := br.ReadString('\n')
		if len(line) > 0 {
			if done, _ := acc.Feed(line); done {
				break
			}
		}
		if rerr != nil {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			break
		}
	}
	return acc.Finish()
}
