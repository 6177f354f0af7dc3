// Package textutil turns free-form video titles into safe output file names.
package textutil
