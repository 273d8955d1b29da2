// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	EntryPointNotFoundId
	UnresolvableDependencyId
	SyntaxErrorId
	TransformFailedId
	DependencyCycleId
	InconsistentGraphId
	WatcherLimitReachedId
	CacheUnavailableId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // key in the catalog
	mdMsg    MarkdownMsg // rendered with glamour
	docLinks []HttpLink  // project documentation
	extLinks []HttpLink  // anything else worth reading
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render returns the message as terminal-styled Markdown, followed by a
// "See also" list when the issue has links.
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if links := append(i.DocLinks(), i.extLinks...); len(links) > 0 {
		md += "\n\n## See also\n"
		for _, link := range links {
			md += "\n- <" + string(link) + ">"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

The configuration file could not be read, does not match the schema, or holds
a value that is out of range.

## Lookup order
1. The file passed with ` + "`--config`" + `
2. ` + "`deltagraph.cue`" + ` in the working directory
3. ` + "`config.cue`" + ` in the user configuration directory

## Things you can try
- Print the file that is being used:
~~~
$ deltagraph config path
~~~
- Compare it against every accepted field:
~~~
$ deltagraph config dump
~~~
- Check ` + "`DELTAGRAPH_*`" + ` environment variables, which override the file.`,
	}

	entryPointNotFoundIssue = &Issue{
		id: EntryPointNotFoundId,
		mdMsg: `
# Entry point not found

An entry point listed in the configuration does not exist. Entry points are
resolved against ` + "`project_root`" + `.

## Things you can try
- Check ` + "`entry_points`" + ` and ` + "`project_root`" + ` in your configuration.
- Pass the project root explicitly:
~~~
$ deltagraph build --root ./app
~~~`,
	}

	unresolvableDependencyIssue = &Issue{
		id: UnresolvableDependencyId,
		mdMsg: `
# Unable to resolve module

A module imports a name that does not map to any file.

## Things you can try
- Check the spelling and the relative path of the import.
- Install the missing package so it appears under ` + "`node_modules`" + `.
- If the file uses an extension other than the defaults, add it to
  ` + "`source_exts`" + ` or ` + "`asset_exts`" + `.
- Wrap optional ` + "`require`" + ` calls in ` + "`try`" + ` so a missing module is tolerated.`,
	}

	syntaxErrorIssue = &Issue{
		id: SyntaxErrorId,
		mdMsg: `
# Syntax error

A source file could not be parsed, so its dependencies are unknown. The graph
keeps its previous state until the file is fixed.

## Things you can try
- Fix the file at the reported line and save it; watch mode picks it up.
- TypeScript files must use the ` + "`.ts`" + ` or ` + "`.tsx`" + ` extension to be parsed as
  TypeScript.`,
	}

	transformFailedIssue = &Issue{
		id: TransformFailedId,
		mdMsg: `
# Transform failed

A module could not be read or processed.

## Things you can try
- Check that the file is readable.
- Run again with ` + "`--no-cache`" + ` to rule out a stale transform cache.`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle

Modules import each other in a loop. Bundles still work, but module
initialization order inside the cycle depends on which module is reached first.

## Things you can try
- List every cycle:
~~~
$ deltagraph build --cycles
~~~
- Move the shared code into a module that both sides import.`,
	}

	inconsistentGraphIssue = &Issue{
		id: InconsistentGraphId,
		mdMsg: `
# Inconsistent module graph

The dependency graph failed its own consistency check. This is a bug in
deltagraph, not in your code. The graph was discarded and will be rebuilt from
scratch on the next change.

## Things you can try
- Run ` + "`deltagraph build --verify`" + ` and include the output in a bug report.`,
	}

	watcherLimitReachedIssue = &Issue{
		id: WatcherLimitReachedId,
		mdMsg: `
# Too many watched files

The operating system refused to watch more files or directories.

## Things you can try
- Raise the inotify limit on Linux:
~~~
$ sudo sysctl fs.inotify.max_user_watches=524288
~~~
- Narrow ` + "`watch.patterns`" + ` or add directories to ` + "`watch.ignore`" + `.`,
		extLinks: []HttpLink{"https://man7.org/linux/man-pages/man7/inotify.7.html"},
	}

	cacheUnavailableIssue = &Issue{
		id: CacheUnavailableId,
		mdMsg: `
# Transform cache unavailable

The on-disk transform cache could not be opened. Another deltagraph process may
be holding its lock.

## Things you can try
- Stop other deltagraph processes using the same ` + "`cache.dir`" + `.
- Run without the cache:
~~~
$ deltagraph build --no-cache
~~~`,
		extLinks: []HttpLink{"https://dgraph.io/docs/badger/"},
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		entryPointNotFoundIssue.Id():     entryPointNotFoundIssue,
		unresolvableDependencyIssue.Id(): unresolvableDependencyIssue,
		syntaxErrorIssue.Id():            syntaxErrorIssue,
		transformFailedIssue.Id():        transformFailedIssue,
		dependencyCycleIssue.Id():        dependencyCycleIssue,
		inconsistentGraphIssue.Id():      inconsistentGraphIssue,
		watcherLimitReachedIssue.Id():    watcherLimitReachedIssue,
		cacheUnavailableIssue.Id():       cacheUnavailableIssue,
	}
)

// Values returns every issue ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id - b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
