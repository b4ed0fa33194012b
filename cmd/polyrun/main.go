// SPDX-License-Identifier: MPL-2.0

// Command polyrun manages per-project language runtimes and runs project
// tasks across ecosystems.
package main

func main() {
	Execute()
}
