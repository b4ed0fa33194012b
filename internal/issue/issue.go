// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	VersionNotFoundId Id = iota + 1
	ChecksumMismatchId
	RuntimeNotInstalledId
	UnsupportedArchId
	TaskNotFoundId
	InstallDeclinedId
	ConfigLoadFailedId
	CatalogFetchFailedId
	InstallInProgressId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // documentation links shown under "See also"
	extLinks []HttpLink  // external links that might be useful for the user
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

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	versionNotFoundIssue = &Issue{
		id: VersionNotFoundId,
		mdMsg: `
# Version not found!

The upstream distribution server has no archive for the requested version.

## Things you can try:
- List the versions the upstream actually publishes:
~~~
$ polyrun list <runtime> --remote
~~~

- Check the version files in your project for typos:
  ` + "`.nvmrc`, `.python-version`, `.tool-versions`, `package.json` engines, ..." + `

- Use an alias instead of a pinned version:
~~~
$ polyrun install node latest
$ polyrun install node lts
~~~`,
	}

	checksumMismatchIssue = &Issue{
		id: ChecksumMismatchId,
		mdMsg: `
# Download checksum mismatch!

The downloaded archive does not match the checksum published by the upstream.
Nothing was installed; the partial download was discarded.

## Possible causes:
- The download was corrupted in transit
- A proxy or captive portal rewrote the response
- The upstream release was re-published (rare)

## Things you can try:
- Retry the install; transient corruption usually clears up
- Check your proxy settings if the failure repeats
- Verify you can reach the upstream distribution server directly`,
	}

	runtimeNotInstalledIssue = &Issue{
		id: RuntimeNotInstalledId,
		mdMsg: `
# Runtime version not installed!

You asked to activate or remove a version that is not present in the
version store.

## Things you can try:
- See what is installed:
~~~
$ polyrun list <runtime>
~~~

- Install the version first:
~~~
$ polyrun install <runtime> <version>
~~~`,
	}

	unsupportedArchIssue = &Issue{
		id: UnsupportedArchId,
		mdMsg: `
# Unsupported architecture!

The upstream for this runtime publishes prebuilt archives only for
x86_64/amd64 and aarch64/arm64 hosts.

## Things you can try:
- Use the fallback backend, which supports more targets. In your config.cue
  (locate it with ` + "`polyrun config path`" + `):
~~~cue
backend: "fallback"
~~~

- Build the runtime from source outside of polyrun and put it on PATH`,
	}

	taskNotFoundIssue = &Issue{
		id: TaskNotFoundId,
		mdMsg: `
# Task not found!

The task name did not match any manifest in the current directory, and
none of the fallback runners (Makefile, npm scripts, Taskfile, Rakefile,
Pipfile, deno task, composer run-script) could serve it.

## Things you can try:
- Check for typos in the task name
- Check the manifests tasks are read from:
  ` + "`package.json` scripts, `Makefile` targets, `deno.json` tasks, `composer.json` scripts, `pyproject.toml` poetry scripts, `Pipfile` [scripts], `Cargo.toml` verbs" + `
- Run the command directly; bare commands are executed as-is:
~~~
$ polyrun run "<command> [args...]"
~~~`,
	}

	installDeclinedIssue = &Issue{
		id: InstallDeclinedId,
		mdMsg: `
# Install declined!

A task needed a runtime version that is not installed, and the install
was declined (or no terminal was attached to ask).

## Things you can try:
- Install the runtime explicitly:
~~~
$ polyrun install <runtime> <version>
~~~

- Allow unattended installs in your config:
~~~cue
auto_confirm: true
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Your config.cue contains syntax errors or invalid values.

## Things you can try:
- Check the error message above for the specific field
- Show the merged configuration:
~~~
$ polyrun config show
~~~

## Example of a valid config.cue:
~~~cue
backend:     "native-then-fallback"
concurrency: 4
auto_confirm: false
~~~`,
	}

	catalogFetchFailedIssue = &Issue{
		id: CatalogFetchFailedId,
		mdMsg: `
# Could not fetch the release catalog!

Resolving "latest", "lts" or listing remote versions needs a live request
to the runtime's release index. That request failed, and polyrun never
substitutes a stale or guessed version.

## Things you can try:
- Check your network connection and proxy settings
- Retry; release index endpoints are occasionally flaky
- Pin an exact version in a version file to avoid catalog resolution`,
	}

	installInProgressIssue = &Issue{
		id: InstallInProgressId,
		mdMsg: `
# Install already in progress!

Another polyrun process is installing the same runtime version right now.

## Things you can try:
- Wait for the other install to finish and retry
- If a previous install crashed, remove the stale marker directory
  ` + "`<data_dir>/versions/<runtime>/.installing.<version>`" + ` and retry`,
	}

	issues = map[Id]*Issue{
		versionNotFoundIssue.Id():     versionNotFoundIssue,
		checksumMismatchIssue.Id():    checksumMismatchIssue,
		runtimeNotInstalledIssue.Id(): runtimeNotInstalledIssue,
		unsupportedArchIssue.Id():     unsupportedArchIssue,
		taskNotFoundIssue.Id():        taskNotFoundIssue,
		installDeclinedIssue.Id():     installDeclinedIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		catalogFetchFailedIssue.Id():  catalogFetchFailedIssue,
		installInProgressIssue.Id():   installInProgressIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
