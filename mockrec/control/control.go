package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/go-appsec/mockrec/mockrec/cliutil"
	"github.com/go-appsec/mockrec/mockrec/mcpclient"
	"github.com/go-appsec/mockrec/mockrec/protocol"
)

func withClient(cf clientFlags, fn func(ctx context.Context, c *mcpclient.Client) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), cf.timeout)
	defer cancel()

	c, err := mcpclient.Connect(ctx, mcpclient.URLFromAddr(cf.addr))
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	return fn(ctx, c)
}

func state(w io.Writer, cf clientFlags, asJSON bool) error {
	return withClient(cf, func(ctx context.Context, c *mcpclient.Client) error {
		st, err := c.State(ctx)
		if err != nil {
			return fmt.Errorf("state failed: %w", err)
		}
		if asJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		printState(w, st)
		return nil
	})
}

func showMode(w io.Writer, cf clientFlags) error {
	return withClient(cf, func(ctx context.Context, c *mcpclient.Client) error {
		st, err := c.State(ctx)
		if err != nil {
			return fmt.Errorf("mode failed: %w", err)
		}
		_, _ = fmt.Fprintln(w, st.Mode)
		return nil
	})
}

func setMode(w io.Writer, cf clientFlags, name string) error {
	return withClient(cf, func(ctx context.Context, c *mcpclient.Client) error {
		var st *protocol.StateResponse
		var err error
		if name == "stop" {
			st, err = c.ModeStop(ctx)
		} else {
			st, err = c.ModeInitialize(ctx, name)
		}
		if err != nil {
			return fmt.Errorf("mode %s failed: %w", name, err)
		}
		printState(w, st)
		return nil
	})
}

func setDynamic(w io.Writer, cf clientFlags, key, value string, hasValue, reset bool) error {
	return withClient(cf, func(ctx context.Context, c *mcpclient.Client) error {
		var v any
		if hasValue {
			v = parseValue(value)
		}
		resp, err := c.DynamicSet(ctx, key, v, reset)
		if err != nil {
			return fmt.Errorf("dynamic failed: %w", err)
		}
		_, _ = fmt.Fprintf(w, "%d dynamic values tracked\n", resp.Tracked)
		return nil
	})
}

// parseValue decodes JSON scalars so numeric and boolean ids match recorded bodies.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		switch v.(type) {
		case float64, bool:
			return v
		}
	}
	return s
}

func printState(w io.Writer, st *protocol.StateResponse) {
	t := cliutil.NewTable(w)
	t.AppendRow(table.Row{"Mode", st.Mode})
	t.AppendRow(table.Row{"Active", st.Active})
	if st.SessionID != "" {
		t.AppendRow(table.Row{"Session", st.SessionID})
	}
	if !st.StartedAt.IsZero() {
		t.AppendRow(table.Row{"Started", st.StartedAt.Local().Format(time.RFC3339)})
	}
	t.AppendRow(table.Row{"Mock dir", st.MockDir})
	t.AppendRow(table.Row{"Auto fallback", st.AutoFallback})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Intercepted", st.Counters.Intercepted})
	t.AppendRow(table.Row{"Recorded", st.Counters.Recorded})
	t.AppendRow(table.Row{"Replayed", st.Counters.Replayed})
	t.AppendRow(table.Row{"Missed", st.Counters.Missed})
	t.AppendRow(table.Row{"Cached", st.CacheEntries})
	t.Render()
}
