// Command infoscreen drives a slow-refresh display from a grid of widgets.
package main

func main() {
	Execute()
}
