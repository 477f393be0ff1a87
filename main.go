// adabot aggregates weekly activity (new and updated libraries, open issues
// and pull requests, contributors, reviewers, infrastructure errors) across an
// organization's repositories and publishes the result as a JSON report,
// either locally or as a pull request against the downstream site repository.
//
// Usage:
//
//	adabot update
//	adabot update --output-file libraries.json
package main

import (
	"github.com/hoffmannjan/adabot/cmd"
)

func main() {
	cmd.Execute()
}
