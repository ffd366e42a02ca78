/*
 * Copyright (C) 2022-2025. Gardel <gardel741@outlook.com> and contributors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package util

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// OptimadeError is one entry of an OPTIMADE {errors:[...]} response body.
// Status mirrors the OPTIMADE/JSON:API convention of the HTTP status
// expressed as a string; HTTPStatus is the same value, kept out of the JSON
// body, used only to pick the status line gin writes.
type OptimadeError struct {
	Status     string `json:"status"`
	Title      string `json:"title"`
	Detail     string `json:"detail,omitempty"`
	Source     string `json:"source,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e OptimadeError) Error() string {
	return e.Detail
}

func newError(status int, title, detail, source string) OptimadeError {
	return OptimadeError{
		Status:     strconv.Itoa(status),
		Title:      title,
		Detail:     detail,
		Source:     source,
		HTTPStatus: status,
	}
}

func NewBadRequest(detail string) OptimadeError { return newError(http.StatusBadRequest, "Bad Request", detail, "") }
func NewNotFound(detail string) OptimadeError   { return newError(http.StatusNotFound, "Not Found", detail, "") }
func NewConflict(detail string) OptimadeError   { return newError(http.StatusConflict, "Conflict", detail, "") }
func NewInternal(detail string) OptimadeError {
	return newError(http.StatusInternalServerError, "Internal Server Error", detail, "")
}
func NewGatewayTimeout(detail string) OptimadeError {
	return newError(http.StatusGatewayTimeout, "Gateway Timeout", detail, "")
}

// ErrorsBody wraps one or more OptimadeError into the OPTIMADE error envelope.
type ErrorsBody struct {
	Errors []OptimadeError `json:"errors"`
}

// HandleError mirrors the teacher's util.HandleError dispatch: known error
// types map to their status and OPTIMADE shape, anything else becomes a
// generic 500 without leaking internals.
func HandleError(c *gin.Context, err error) {
	switch x := err.(type) {
	case OptimadeError:
		c.AbortWithStatusJSON(statusOf(x), ErrorsBody{Errors: []OptimadeError{x}})
	case *OptimadeError:
		c.AbortWithStatusJSON(statusOf(*x), ErrorsBody{Errors: []OptimadeError{*x}})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorsBody{Errors: []OptimadeError{
			newError(http.StatusInternalServerError, "Internal Server Error", "an internal error occurred", ""),
		}})
	}
}

func statusOf(e OptimadeError) int {
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}
