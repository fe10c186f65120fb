// Package ontologytest provides a small ontology shared by tests.
package ontologytest

import "github.com/heimdex/heimdex-labels/internal/ontology"

// Feature, attribute and option hashes of the fixture ontology.
const (
	Car        = "obj-car"
	Pedestrian = "obj-pedestrian"
	Keypoint   = "obj-keypoint"
	Lane       = "obj-lane"
	Boat       = "obj-boat"
	Road       = "obj-road"

	Colour      = "attr-colour"
	Red         = "opt-red"
	Blue        = "opt-blue"
	Shade       = "attr-shade"
	Plate       = "attr-plate"
	Tags        = "attr-tags"
	TagDamaged  = "opt-damaged"
	TagParked   = "opt-parked"
	Moving      = "attr-moving"
	MovingYes   = "opt-moving-yes"
	MovingNo    = "opt-moving-no"
	Weather     = "cls-weather"
	WeatherKind = "attr-weather"
	Sunny       = "opt-sunny"
	Rainy       = "opt-rainy"
	Caption     = "cls-caption"
	CaptionText = "attr-caption"
)

// Structure returns a fresh copy of the fixture ontology.
func Structure() *ontology.Structure {
	return &ontology.Structure{
		Objects: []ontology.Object{
			{
				FeatureHash: Car, Name: "Parked Car", Color: "#D33115", Shape: ontology.ShapeBoundingBox,
				Attributes: []ontology.Attribute{
					{
						FeatureHash: Colour, Name: "Colour", Type: ontology.AttributeRadio,
						Options: []ontology.Option{
							{FeatureHash: Red, Label: "Red", Value: "red"},
							{
								FeatureHash: Blue, Label: "Blue", Value: "blue",
								Nested: []ontology.Attribute{
									{FeatureHash: Shade, Name: "Shade", Type: ontology.AttributeText},
								},
							},
						},
					},
					{FeatureHash: Plate, Name: "Licence Plate", Type: ontology.AttributeText},
					{
						FeatureHash: Tags, Name: "Tags", Type: ontology.AttributeChecklist,
						Options: []ontology.Option{
							{FeatureHash: TagDamaged, Label: "Damaged", Value: "damaged"},
							{FeatureHash: TagParked, Label: "Parked", Value: "parked"},
						},
					},
					{
						FeatureHash: Moving, Name: "Moving", Type: ontology.AttributeRadio, Dynamic: true,
						Options: []ontology.Option{
							{FeatureHash: MovingYes, Label: "Yes", Value: "yes"},
							{FeatureHash: MovingNo, Label: "No", Value: "no"},
						},
					},
				},
			},
			{FeatureHash: Pedestrian, Name: "Pedestrian", Color: "#FE9200", Shape: ontology.ShapePolygon},
			{FeatureHash: Keypoint, Name: "Keypoint", Color: "#FCDC00", Shape: ontology.ShapePoint},
			{FeatureHash: Lane, Name: "Lane", Color: "#DBDF00", Shape: ontology.ShapePolyline},
			{FeatureHash: Boat, Name: "Boat", Color: "#A4DD00", Shape: ontology.ShapeRotatableBoundingBox},
			{FeatureHash: Road, Name: "Road", Color: "#68CCCA", Shape: ontology.ShapeBitmask},
		},
		Classifications: []ontology.Classification{
			{
				FeatureHash: Weather,
				Attributes: []ontology.Attribute{
					{
						FeatureHash: WeatherKind, Name: "Weather", Type: ontology.AttributeRadio,
						Options: []ontology.Option{
							{FeatureHash: Sunny, Label: "Sunny", Value: "sunny"},
							{FeatureHash: Rainy, Label: "Rainy", Value: "rainy"},
						},
					},
				},
			},
			{
				FeatureHash: Caption,
				Attributes: []ontology.Attribute{
					{FeatureHash: CaptionText, Name: "Caption", Type: ontology.AttributeText},
				},
			},
		},
	}
}

// Index returns the indexed fixture ontology.
func Index() *ontology.Index {
	idx, err := ontology.NewIndex(Structure())
	if err != nil {
		panic(err)
	}
	return idx
}
