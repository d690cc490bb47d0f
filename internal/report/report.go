// Package report renders per-source migration counters. It reads the same
// repositories the pipeline writes, so the numbers always reflect committed
// state.
package report

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/archive-evacuator/internal/repository"
)

// Print writes the import/publish counters of both sources as aligned
// tables. textLimit feeds the long-post counter: posts above it will need
// segmentation when published.
func Print(ctx context.Context, w io.Writer, repos *repository.Repositories, textLimit int) error {
	if err := printSource(ctx, w, "Facebook", repos.Facebook, textLimit); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return printSource(ctx, w, "Mastodon", repos.Mastodon, textLimit)
}

func printSource(ctx context.Context, w io.Writer, name string, repos repository.SourceRepos, textLimit int) error {
	imported, err := repos.Posts.Count(ctx)
	if err != nil {
		return err
	}
	pushed, err := repos.Posts.CountPushed(ctx)
	if err != nil {
		return err
	}
	partial, err := repos.Posts.CountPartial(ctx)
	if err != nil {
		return err
	}
	long, err := repos.Posts.CountLongerThan(ctx, textLimit)
	if err != nil {
		return err
	}
	mediaImported, err := repos.Media.Count(ctx)
	if err != nil {
		return err
	}
	mediaPushed, err := repos.Media.CountPushed(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s Posts\tCount\n", name)
	fmt.Fprintf(tw, "Imported\t%d\n", imported)
	fmt.Fprintf(tw, "Pushed\t%d\n", pushed)
	fmt.Fprintf(tw, "Partially pushed\t%d\n", partial)
	fmt.Fprintf(tw, "Long posts\t%d\n", long)
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "%s Media\tCount\n", name)
	fmt.Fprintf(tw, "Imported\t%d\n", mediaImported)
	fmt.Fprintf(tw, "Pushed\t%d\n", mediaPushed)
	return tw.Flush()
}
